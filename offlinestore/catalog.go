// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Reference-cache accessors. Replace* swaps a whole collection in one
// transaction and stamps its sync metadata; the previous contents stay
// visible until the swap commits.

// ReplaceHardwareCatalog replaces the cached hardware price list.
func (s *Store) ReplaceHardwareCatalog(ctx context.Context, items []HardwareCatalogItem, dataVersion string) error {
	list := make([]Item, len(items))
	for i, it := range items {
		list[i] = it
	}
	if err := s.BulkReplace(ctx, HardwareCatalog, list); err != nil {
		return err
	}
	return s.stampMetadata(ctx, HardwareCatalog, len(items), dataVersion)
}

// HardwareCatalogItems returns the cached hardware catalog.
func (s *Store) HardwareCatalogItems(ctx context.Context) ([]HardwareCatalogItem, error) {
	raw, err := s.GetAll(ctx, HardwareCatalog)
	if err != nil {
		return nil, err
	}
	return decodeHardware(raw)
}

// HardwareByBrand returns cached hardware of a single brand.
func (s *Store) HardwareByBrand(ctx context.Context, brand string) ([]HardwareCatalogItem, error) {
	raw, err := s.GetByIndex(ctx, HardwareCatalog, "brand", brand)
	if err != nil {
		return nil, err
	}
	return decodeHardware(raw)
}

// HardwareByCategory returns cached hardware of a single category.
func (s *Store) HardwareByCategory(ctx context.Context, category string) ([]HardwareCatalogItem, error) {
	raw, err := s.GetByIndex(ctx, HardwareCatalog, "category", category)
	if err != nil {
		return nil, err
	}
	return decodeHardware(raw)
}

// ReplaceTariffs replaces the cached mobile tariff list.
func (s *Store) ReplaceTariffs(ctx context.Context, items []TariffItem, dataVersion string) error {
	list := make([]Item, len(items))
	for i, it := range items {
		list[i] = it
	}
	if err := s.BulkReplace(ctx, MobileTariffs, list); err != nil {
		return err
	}
	return s.stampMetadata(ctx, MobileTariffs, len(items), dataVersion)
}

// Tariffs returns the cached mobile tariffs.
func (s *Store) Tariffs(ctx context.Context) ([]TariffItem, error) {
	raw, err := s.GetAll(ctx, MobileTariffs)
	if err != nil {
		return nil, err
	}
	return decodeTariffs(raw)
}

// TariffsByFamily returns cached tariffs of one family.
func (s *Store) TariffsByFamily(ctx context.Context, family string) ([]TariffItem, error) {
	raw, err := s.GetByIndex(ctx, MobileTariffs, "family", family)
	if err != nil {
		return nil, err
	}
	return decodeTariffs(raw)
}

// ReplaceFixedNetProducts replaces the cached fixed-network products.
func (s *Store) ReplaceFixedNetProducts(ctx context.Context, items []FixedNetProduct, dataVersion string) error {
	list := make([]Item, len(items))
	for i, it := range items {
		list[i] = it
	}
	if err := s.BulkReplace(ctx, FixedNetProducts, list); err != nil {
		return err
	}
	return s.stampMetadata(ctx, FixedNetProducts, len(items), dataVersion)
}

// FixedNetProductsByType returns cached fixed-network products of one type.
func (s *Store) FixedNetProductsByType(ctx context.Context, productType string) ([]FixedNetProduct, error) {
	raw, err := s.GetByIndex(ctx, FixedNetProducts, "type", productType)
	if err != nil {
		return nil, err
	}
	out := make([]FixedNetProduct, 0, len(raw))
	for _, r := range raw {
		var p FixedNetProduct
		if err := json.Unmarshal(r, &p); err != nil {
			return nil, fmt.Errorf("failed to decode fixed-net product: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ReplaceChecklists replaces the cached visit checklist templates.
func (s *Store) ReplaceChecklists(ctx context.Context, items []CachedChecklist, dataVersion string) error {
	list := make([]Item, len(items))
	for i, it := range items {
		list[i] = it
	}
	if err := s.BulkReplace(ctx, CachedChecklists, list); err != nil {
		return err
	}
	return s.stampMetadata(ctx, CachedChecklists, len(items), dataVersion)
}

// Checklists returns the cached checklist templates.
func (s *Store) Checklists(ctx context.Context) ([]CachedChecklist, error) {
	raw, err := s.GetAll(ctx, CachedChecklists)
	if err != nil {
		return nil, err
	}
	out := make([]CachedChecklist, 0, len(raw))
	for _, r := range raw {
		var c CachedChecklist
		if err := json.Unmarshal(r, &c); err != nil {
			return nil, fmt.Errorf("failed to decode checklist: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ReplaceCustomers replaces the cached customer list.
func (s *Store) ReplaceCustomers(ctx context.Context, items []CachedCustomer, dataVersion string) error {
	list := make([]Item, len(items))
	for i, it := range items {
		list[i] = it
	}
	if err := s.BulkReplace(ctx, CachedCustomers, list); err != nil {
		return err
	}
	return s.stampMetadata(ctx, CachedCustomers, len(items), dataVersion)
}

// Customers returns the cached customers.
func (s *Store) Customers(ctx context.Context) ([]CachedCustomer, error) {
	raw, err := s.GetAll(ctx, CachedCustomers)
	if err != nil {
		return nil, err
	}
	out := make([]CachedCustomer, 0, len(raw))
	for _, r := range raw {
		var c CachedCustomer
		if err := json.Unmarshal(r, &c); err != nil {
			return nil, fmt.Errorf("failed to decode customer: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// CollectionMetadata returns the refresh metadata for one collection, or
// ErrNotFound if it has never been refreshed.
func (s *Store) CollectionMetadata(ctx context.Context, collectionName string) (SyncMetadata, error) {
	raw, err := s.Get(ctx, Metadata, collectionName)
	if err != nil {
		return SyncMetadata{}, err
	}
	var m SyncMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return SyncMetadata{}, fmt.Errorf("failed to decode sync metadata for %s: %w", collectionName, err)
	}
	return m, nil
}

// AllMetadata returns the refresh metadata of every collection that has
// been refreshed at least once.
func (s *Store) AllMetadata(ctx context.Context) ([]SyncMetadata, error) {
	raw, err := s.GetAll(ctx, Metadata)
	if err != nil {
		return nil, err
	}
	out := make([]SyncMetadata, 0, len(raw))
	for _, r := range raw {
		var m SyncMetadata
		if err := json.Unmarshal(r, &m); err != nil {
			return nil, fmt.Errorf("failed to decode sync metadata: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) stampMetadata(ctx context.Context, collectionName string, itemCount int, dataVersion string) error {
	return s.Put(ctx, Metadata, SyncMetadata{
		ID:          collectionName,
		LastSyncAt:  time.Now().UTC(),
		DataVersion: dataVersion,
		ItemCount:   itemCount,
	})
}

// DataAvailable reports whether the store can carry the calculator
// offline: both the hardware catalog and the tariff cache are non-empty.
func (s *Store) DataAvailable(ctx context.Context) bool {
	hardware, err := s.Count(ctx, HardwareCatalog)
	if err != nil || hardware == 0 {
		return false
	}
	tariffs, err := s.Count(ctx, MobileTariffs)
	return err == nil && tariffs > 0
}

// Stats is the snapshot the host UI renders in its offline indicator.
type Stats struct {
	HardwareCount       int        `json:"hardwareCount"`
	TariffCount         int        `json:"tariffCount"`
	PendingOffers       int        `json:"pendingOffers"`
	PendingCalculations int        `json:"pendingCalculations"`
	PendingVisits       int        `json:"pendingVisits"`
	PendingPhotos       int        `json:"pendingPhotos"`
	StalledOffers       int        `json:"stalledOffers"`
	StalledCalculations int        `json:"stalledCalculations"`
	LastSync            *time.Time `json:"lastSync"`
}

// StorageStats computes counts across caches and outboxes. maxAttempts, if
// positive, is the upload give-up threshold used to classify items as
// stalled; 0 disables stalled accounting.
func (s *Store) StorageStats(ctx context.Context, maxAttempts int) (Stats, error) {
	var stats Stats
	var err error

	if stats.HardwareCount, err = s.Count(ctx, HardwareCatalog); err != nil {
		return Stats{}, err
	}
	if stats.TariffCount, err = s.Count(ctx, MobileTariffs); err != nil {
		return Stats{}, err
	}
	if stats.PendingVisits, err = s.Count(ctx, PendingVisits); err != nil {
		return Stats{}, err
	}
	if stats.PendingPhotos, err = s.Count(ctx, PendingPhotos); err != nil {
		return Stats{}, err
	}

	offers, err := s.AllPendingOffers(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.PendingOffers = len(offers)
	for _, o := range offers {
		if maxAttempts > 0 && o.RetryCount >= maxAttempts {
			stats.StalledOffers++
		}
	}

	calcs, err := s.AllPendingCalculations(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.PendingCalculations = len(calcs)
	for _, c := range calcs {
		if maxAttempts > 0 && c.RetryCount >= maxAttempts {
			stats.StalledCalculations++
		}
	}

	if meta, err := s.CollectionMetadata(ctx, HardwareCatalog); err == nil {
		last := meta.LastSyncAt
		stats.LastSync = &last
	}

	return stats, nil
}

func decodeHardware(raw []json.RawMessage) ([]HardwareCatalogItem, error) {
	out := make([]HardwareCatalogItem, 0, len(raw))
	for _, r := range raw {
		var h HardwareCatalogItem
		if err := json.Unmarshal(r, &h); err != nil {
			return nil, fmt.Errorf("failed to decode hardware item: %w", err)
		}
		out = append(out, h)
	}
	return out, nil
}

func decodeTariffs(raw []json.RawMessage) ([]TariffItem, error) {
	out := make([]TariffItem, 0, len(raw))
	for _, r := range raw {
		var t TariffItem
		if err := json.Unmarshal(r, &t); err != nil {
			return nil, fmt.Errorf("failed to decode tariff: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

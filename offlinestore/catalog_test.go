// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinestore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplaceHardwareCatalogStampsMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	items := []HardwareCatalogItem{
		{ID: "hw-1", Brand: "Apple", Model: "iPhone 16", Category: "smartphone", EKNet: 789},
		{ID: "hw-2", Brand: "Samsung", Model: "Galaxy S25", Category: "smartphone", EKNet: 699},
	}
	require.NoError(t, store.ReplaceHardwareCatalog(ctx, items, "v2025_10"))

	got, err := store.HardwareCatalogItems(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	meta, err := store.CollectionMetadata(ctx, HardwareCatalog)
	require.NoError(t, err)
	require.Equal(t, HardwareCatalog, meta.ID)
	require.Equal(t, "v2025_10", meta.DataVersion)
	require.Equal(t, 2, meta.ItemCount)
	require.False(t, meta.LastSyncAt.IsZero())
}

func TestAllMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meta, err := store.AllMetadata(ctx)
	require.NoError(t, err)
	require.Empty(t, meta)

	require.NoError(t, store.ReplaceHardwareCatalog(ctx,
		[]HardwareCatalogItem{{ID: "hw-1"}}, "v1"))
	require.NoError(t, store.ReplaceTariffs(ctx,
		[]TariffItem{{ID: "t1"}}, "v1"))

	meta, err = store.AllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, meta, 2)
	ids := []string{meta[0].ID, meta[1].ID}
	require.ElementsMatch(t, []string{HardwareCatalog, MobileTariffs}, ids)
}

func TestMetadataMissingForUnrefreshedCollection(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CollectionMetadata(context.Background(), MobileTariffs)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDataAvailable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.False(t, store.DataAvailable(ctx))

	require.NoError(t, store.ReplaceHardwareCatalog(ctx,
		[]HardwareCatalogItem{{ID: "hw-1", Brand: "Apple"}}, "v1"))
	// Hardware alone is not enough for offline calculation.
	require.False(t, store.DataAvailable(ctx))

	require.NoError(t, store.ReplaceTariffs(ctx,
		[]TariffItem{{ID: "t1", Name: "S", Family: "f"}}, "v1"))
	require.True(t, store.DataAvailable(ctx))
}

func TestTariffsByFamily(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceTariffs(ctx, []TariffItem{
		{ID: "t1", Name: "Business Mobil S", Family: "business_mobil"},
		{ID: "t2", Name: "Smart Connect S", Family: "smart_connect"},
		{ID: "t3", Name: "Business Mobil M", Family: "business_mobil"},
	}, "v1"))

	biz, err := store.TariffsByFamily(ctx, "business_mobil")
	require.NoError(t, err)
	require.Len(t, biz, 2)
}

func TestCustomersAndChecklists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceCustomers(ctx, []CachedCustomer{
		{ID: "c1", CompanyName: "Müller GmbH", ContactName: "A. Müller", Phone: "+49 30 123"},
	}, "v1"))
	require.NoError(t, store.ReplaceChecklists(ctx, []CachedChecklist{
		{ID: "chk-1", Name: "Standard visit", Items: []ChecklistItem{
			{ID: "q1", Question: "Contract renewal due?", Type: "boolean", Required: true},
		}},
	}, "v1"))

	customers, err := store.Customers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	require.Equal(t, "Müller GmbH", customers[0].CompanyName)

	checklists, err := store.Checklists(ctx)
	require.NoError(t, err)
	require.Len(t, checklists, 1)
	require.Len(t, checklists[0].Items, 1)
}

func TestStorageStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceHardwareCatalog(ctx,
		[]HardwareCatalogItem{{ID: "hw-1"}, {ID: "hw-2"}}, "v1"))
	require.NoError(t, store.ReplaceTariffs(ctx,
		[]TariffItem{{ID: "t1"}}, "v1"))

	offerID, err := store.AddPendingOffer(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = store.AddPendingCalculation(ctx, json.RawMessage(`{}`), "s")
	require.NoError(t, err)
	_, err = store.AddPendingVisit(ctx, VisitInput{CustomerID: "c"})
	require.NoError(t, err)

	stats, err := store.StorageStats(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 2, stats.HardwareCount)
	require.Equal(t, 1, stats.TariffCount)
	require.Equal(t, 1, stats.PendingOffers)
	require.Equal(t, 1, stats.PendingCalculations)
	require.Equal(t, 1, stats.PendingVisits)
	require.Zero(t, stats.PendingPhotos)
	require.NotNil(t, stats.LastSync)

	// Stalled accounting kicks in once the give-up threshold is set.
	require.NoError(t, store.MarkOfferStatus(ctx, offerID, StatusFailed))
	require.NoError(t, store.MarkOfferStatus(ctx, offerID, StatusFailed))
	stats, err = store.StorageStats(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, stats.StalledOffers)
	require.Zero(t, stats.StalledCalculations)
}

// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outbox accessors. Every Add* call generates the record's id before
// persisting, stamps CreatedAt and returns only after the row is durable,
// so a crash or restart right after the call never loses the record.
// Enqueuing is allowed while online; the coordinator drains opportunistically.

// AddPendingOffer queues a draft offer for upload and returns its id.
func (s *Store) AddPendingOffer(ctx context.Context, config json.RawMessage) (string, error) {
	offer := PendingOffer{
		ID:         uuid.New().String(),
		Config:     config,
		CreatedAt:  time.Now().UTC(),
		SyncStatus: StatusPending,
	}
	if err := s.Put(ctx, PendingOffers, offer); err != nil {
		return "", err
	}
	return offer.ID, nil
}

// ListPendingOffers returns offers still waiting for upload, in enqueue order.
func (s *Store) ListPendingOffers(ctx context.Context) ([]PendingOffer, error) {
	raw, err := s.GetByIndex(ctx, PendingOffers, "syncStatus", string(StatusPending))
	if err != nil {
		return nil, err
	}
	return decodeOffers(raw)
}

// AllPendingOffers returns every queued offer regardless of status.
func (s *Store) AllPendingOffers(ctx context.Context) ([]PendingOffer, error) {
	raw, err := s.GetAll(ctx, PendingOffers)
	if err != nil {
		return nil, err
	}
	return decodeOffers(raw)
}

// MarkOfferStatus updates an offer's sync status. A transition to failed
// increments the retry count; any other transition resets it.
func (s *Store) MarkOfferStatus(ctx context.Context, id string, status SyncStatus) error {
	raw, err := s.Get(ctx, PendingOffers, id)
	if err != nil {
		return err
	}
	var offer PendingOffer
	if err := json.Unmarshal(raw, &offer); err != nil {
		return fmt.Errorf("failed to decode pending offer %s: %w", id, err)
	}
	offer.SyncStatus = status
	if status == StatusFailed {
		offer.RetryCount++
	} else {
		offer.RetryCount = 0
	}
	return s.Put(ctx, PendingOffers, offer)
}

// RemovePendingOffer deletes an offer after the remote service confirmed it.
func (s *Store) RemovePendingOffer(ctx context.Context, id string) error {
	return s.Delete(ctx, PendingOffers, id)
}

// AddPendingCalculation queues a margin calculation for upload.
func (s *Store) AddPendingCalculation(ctx context.Context, config json.RawMessage, summary string) (string, error) {
	calc := PendingCalculation{
		ID:         uuid.New().String(),
		Config:     config,
		Summary:    summary,
		CreatedAt:  time.Now().UTC(),
		SyncStatus: StatusPending,
	}
	if err := s.Put(ctx, PendingCalculations, calc); err != nil {
		return "", err
	}
	return calc.ID, nil
}

// ListPendingCalculations returns calculations waiting for upload.
func (s *Store) ListPendingCalculations(ctx context.Context) ([]PendingCalculation, error) {
	raw, err := s.GetByIndex(ctx, PendingCalculations, "syncStatus", string(StatusPending))
	if err != nil {
		return nil, err
	}
	return decodeCalculations(raw)
}

// AllPendingCalculations returns every queued calculation.
func (s *Store) AllPendingCalculations(ctx context.Context) ([]PendingCalculation, error) {
	raw, err := s.GetAll(ctx, PendingCalculations)
	if err != nil {
		return nil, err
	}
	return decodeCalculations(raw)
}

// MarkCalculationStatus updates a calculation's sync status, with the
// same retry-count rule as offers.
func (s *Store) MarkCalculationStatus(ctx context.Context, id string, status SyncStatus) error {
	raw, err := s.Get(ctx, PendingCalculations, id)
	if err != nil {
		return err
	}
	var calc PendingCalculation
	if err := json.Unmarshal(raw, &calc); err != nil {
		return fmt.Errorf("failed to decode pending calculation %s: %w", id, err)
	}
	calc.SyncStatus = status
	if status == StatusFailed {
		calc.RetryCount++
	} else {
		calc.RetryCount = 0
	}
	return s.Put(ctx, PendingCalculations, calc)
}

// RemovePendingCalculation deletes a confirmed calculation.
func (s *Store) RemovePendingCalculation(ctx context.Context, id string) error {
	return s.Delete(ctx, PendingCalculations, id)
}

// VisitInput carries the caller-supplied fields of a visit report; the
// engine fills id, timestamps and sync state.
type VisitInput struct {
	CustomerID         string
	VisitDate          time.Time
	LocationLat        *float64
	LocationLng        *float64
	LocationAddress    string
	Notes              string
	ChecklistID        string
	ChecklistResponses json.RawMessage
}

// AddPendingVisit queues a visit report created offline.
func (s *Store) AddPendingVisit(ctx context.Context, in VisitInput) (string, error) {
	visitDate := in.VisitDate
	if visitDate.IsZero() {
		visitDate = time.Now().UTC()
	}
	visit := PendingVisit{
		ID:                 uuid.New().String(),
		CustomerID:         in.CustomerID,
		VisitDate:          visitDate,
		LocationLat:        in.LocationLat,
		LocationLng:        in.LocationLng,
		LocationAddress:    in.LocationAddress,
		Notes:              in.Notes,
		ChecklistID:        in.ChecklistID,
		ChecklistResponses: in.ChecklistResponses,
		CreatedAt:          time.Now().UTC(),
		SyncStatus:         StatusPending,
	}
	if err := s.Put(ctx, PendingVisits, visit); err != nil {
		return "", err
	}
	return visit.ID, nil
}

// ListPendingVisits returns visit reports waiting for upload.
func (s *Store) ListPendingVisits(ctx context.Context) ([]PendingVisit, error) {
	raw, err := s.GetByIndex(ctx, PendingVisits, "syncStatus", string(StatusPending))
	if err != nil {
		return nil, err
	}
	return decodeVisits(raw)
}

// AllPendingVisits returns every queued visit report regardless of status.
func (s *Store) AllPendingVisits(ctx context.Context) ([]PendingVisit, error) {
	raw, err := s.GetAll(ctx, PendingVisits)
	if err != nil {
		return nil, err
	}
	return decodeVisits(raw)
}

// MarkVisitStatus updates a visit report's sync status.
func (s *Store) MarkVisitStatus(ctx context.Context, id string, status SyncStatus) error {
	raw, err := s.Get(ctx, PendingVisits, id)
	if err != nil {
		return err
	}
	var visit PendingVisit
	if err := json.Unmarshal(raw, &visit); err != nil {
		return fmt.Errorf("failed to decode pending visit %s: %w", id, err)
	}
	visit.SyncStatus = status
	if status == StatusFailed {
		visit.RetryCount++
	} else {
		visit.RetryCount = 0
	}
	return s.Put(ctx, PendingVisits, visit)
}

// RemovePendingVisit deletes a confirmed visit report.
func (s *Store) RemovePendingVisit(ctx context.Context, id string) error {
	return s.Delete(ctx, PendingVisits, id)
}

// AddPendingPhoto queues a visit photo, base64-encoded as captured.
func (s *Store) AddPendingPhoto(ctx context.Context, visitID, base64Data, caption string) (string, error) {
	photo := PendingPhoto{
		ID:        uuid.New().String(),
		VisitID:   visitID,
		Base64:    base64Data,
		Caption:   caption,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Put(ctx, PendingPhotos, photo); err != nil {
		return "", err
	}
	return photo.ID, nil
}

// ListPendingPhotos returns all queued photos in enqueue order.
func (s *Store) ListPendingPhotos(ctx context.Context) ([]PendingPhoto, error) {
	raw, err := s.GetAll(ctx, PendingPhotos)
	if err != nil {
		return nil, err
	}
	return decodePhotos(raw)
}

// PhotosForVisit returns the queued photos attached to one visit report.
func (s *Store) PhotosForVisit(ctx context.Context, visitID string) ([]PendingPhoto, error) {
	raw, err := s.GetByIndex(ctx, PendingPhotos, "visitId", visitID)
	if err != nil {
		return nil, err
	}
	return decodePhotos(raw)
}

// RemovePendingPhoto deletes a confirmed photo.
func (s *Store) RemovePendingPhoto(ctx context.Context, id string) error {
	return s.Delete(ctx, PendingPhotos, id)
}

// RequeueFailed flips every failed outbox item back to pending and resets
// its retry count, giving it a fresh set of attempts on the next cycle.
// Returns the number of requeued items.
func (s *Store) RequeueFailed(ctx context.Context) (int, error) {
	requeued := 0

	offers, err := s.GetByIndex(ctx, PendingOffers, "syncStatus", string(StatusFailed))
	if err != nil {
		return 0, err
	}
	for _, raw := range offers {
		var offer PendingOffer
		if err := json.Unmarshal(raw, &offer); err != nil {
			return requeued, fmt.Errorf("failed to decode failed offer: %w", err)
		}
		if err := s.MarkOfferStatus(ctx, offer.ID, StatusPending); err != nil {
			return requeued, err
		}
		requeued++
	}

	calcs, err := s.GetByIndex(ctx, PendingCalculations, "syncStatus", string(StatusFailed))
	if err != nil {
		return requeued, err
	}
	for _, raw := range calcs {
		var calc PendingCalculation
		if err := json.Unmarshal(raw, &calc); err != nil {
			return requeued, fmt.Errorf("failed to decode failed calculation: %w", err)
		}
		if err := s.MarkCalculationStatus(ctx, calc.ID, StatusPending); err != nil {
			return requeued, err
		}
		requeued++
	}

	visits, err := s.GetByIndex(ctx, PendingVisits, "syncStatus", string(StatusFailed))
	if err != nil {
		return requeued, err
	}
	for _, raw := range visits {
		var visit PendingVisit
		if err := json.Unmarshal(raw, &visit); err != nil {
			return requeued, fmt.Errorf("failed to decode failed visit: %w", err)
		}
		if err := s.MarkVisitStatus(ctx, visit.ID, StatusPending); err != nil {
			return requeued, err
		}
		requeued++
	}

	return requeued, nil
}

func decodeOffers(raw []json.RawMessage) ([]PendingOffer, error) {
	out := make([]PendingOffer, 0, len(raw))
	for _, r := range raw {
		var offer PendingOffer
		if err := json.Unmarshal(r, &offer); err != nil {
			return nil, fmt.Errorf("failed to decode pending offer: %w", err)
		}
		out = append(out, offer)
	}
	return out, nil
}

func decodeCalculations(raw []json.RawMessage) ([]PendingCalculation, error) {
	out := make([]PendingCalculation, 0, len(raw))
	for _, r := range raw {
		var calc PendingCalculation
		if err := json.Unmarshal(r, &calc); err != nil {
			return nil, fmt.Errorf("failed to decode pending calculation: %w", err)
		}
		out = append(out, calc)
	}
	return out, nil
}

func decodeVisits(raw []json.RawMessage) ([]PendingVisit, error) {
	out := make([]PendingVisit, 0, len(raw))
	for _, r := range raw {
		var visit PendingVisit
		if err := json.Unmarshal(r, &visit); err != nil {
			return nil, fmt.Errorf("failed to decode pending visit: %w", err)
		}
		out = append(out, visit)
	}
	return out, nil
}

func decodePhotos(raw []json.RawMessage) ([]PendingPhoto, error) {
	out := make([]PendingPhoto, 0, len(raw))
	for _, r := range raw {
		var photo PendingPhoto
		if err := json.Unmarshal(r, &photo); err != nil {
			return nil, fmt.Errorf("failed to decode pending photo: %w", err)
		}
		out = append(out, photo)
	}
	return out, nil
}

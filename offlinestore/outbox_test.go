// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinestore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddPendingOfferIsDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")
	ctx := context.Background()

	store, err := Open(path, nil)
	require.NoError(t, err)

	var ids []string
	for range 3 {
		id, err := store.AddPendingOffer(ctx, json.RawMessage(`{"tariff":"tf-biz-m"}`))
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}
	require.NoError(t, store.Close())

	// Restart simulation: the queue must contain exactly the enqueued
	// items after re-open.
	store2, err := Open(path, nil)
	require.NoError(t, err)
	defer store2.Close()

	offers, err := store2.AllPendingOffers(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 3)
	var gotIDs []string
	for _, o := range offers {
		gotIDs = append(gotIDs, o.ID)
		require.Equal(t, StatusPending, o.SyncStatus)
		require.Zero(t, o.RetryCount)
		require.False(t, o.CreatedAt.IsZero())
	}
	require.ElementsMatch(t, ids, gotIDs)
}

func TestListPendingOffersFiltersByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id1, err := store.AddPendingOffer(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	id2, err := store.AddPendingOffer(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, store.MarkOfferStatus(ctx, id1, StatusFailed))

	pending, err := store.ListPendingOffers(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, id2, pending[0].ID)

	all, err := store.AllPendingOffers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMarkOfferStatusRetryCounting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.AddPendingOffer(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, store.MarkOfferStatus(ctx, id, StatusFailed))
	require.NoError(t, store.MarkOfferStatus(ctx, id, StatusFailed))
	offers, err := store.AllPendingOffers(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, offers[0].RetryCount)
	require.Equal(t, StatusFailed, offers[0].SyncStatus)

	// Back to pending resets the counter.
	require.NoError(t, store.MarkOfferStatus(ctx, id, StatusPending))
	offers, err = store.AllPendingOffers(ctx)
	require.NoError(t, err)
	require.Zero(t, offers[0].RetryCount)

	err = store.MarkOfferStatus(ctx, "missing", StatusFailed)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPendingCalculations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.AddPendingCalculation(ctx, json.RawMessage(`{"hw":"hw-1"}`), "iPhone 16 + Business Mobil M")
	require.NoError(t, err)

	calcs, err := store.ListPendingCalculations(ctx)
	require.NoError(t, err)
	require.Len(t, calcs, 1)
	require.Equal(t, "iPhone 16 + Business Mobil M", calcs[0].Summary)

	require.NoError(t, store.RemovePendingCalculation(ctx, id))
	calcs, err = store.ListPendingCalculations(ctx)
	require.NoError(t, err)
	require.Empty(t, calcs)
}

func TestPendingVisitsAndPhotos(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lat, lng := 52.52, 13.405
	visitID, err := store.AddPendingVisit(ctx, VisitInput{
		CustomerID:         "cust-1",
		VisitDate:          time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC),
		LocationLat:        &lat,
		LocationLng:        &lng,
		LocationAddress:    "Alexanderplatz 1, Berlin",
		Notes:              "Interested in fleet tariffs",
		ChecklistID:        "chk-std",
		ChecklistResponses: json.RawMessage(`{"q1":true}`),
	})
	require.NoError(t, err)

	photoID, err := store.AddPendingPhoto(ctx, visitID, "aGVsbG8=", "storefront")
	require.NoError(t, err)
	otherID, err := store.AddPendingPhoto(ctx, "visit-other", "d29ybGQ=", "")
	require.NoError(t, err)

	visits, err := store.ListPendingVisits(ctx)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.Equal(t, "cust-1", visits[0].CustomerID)
	require.NotNil(t, visits[0].LocationLat)

	forVisit, err := store.PhotosForVisit(ctx, visitID)
	require.NoError(t, err)
	require.Len(t, forVisit, 1)
	require.Equal(t, photoID, forVisit[0].ID)

	all, err := store.ListPendingPhotos(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, store.RemovePendingPhoto(ctx, otherID))
	all, err = store.ListPendingPhotos(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestRequeueFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	offerID, err := store.AddPendingOffer(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	calcID, err := store.AddPendingCalculation(ctx, json.RawMessage(`{}`), "s")
	require.NoError(t, err)
	visitID, err := store.AddPendingVisit(ctx, VisitInput{CustomerID: "c"})
	require.NoError(t, err)

	require.NoError(t, store.MarkOfferStatus(ctx, offerID, StatusFailed))
	require.NoError(t, store.MarkCalculationStatus(ctx, calcID, StatusFailed))
	require.NoError(t, store.MarkVisitStatus(ctx, visitID, StatusFailed))

	n, err := store.RequeueFailed(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	offers, err := store.ListPendingOffers(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Zero(t, offers[0].RetryCount)

	// Nothing failed anymore; second pass is a no-op.
	n, err = store.RequeueFailed(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

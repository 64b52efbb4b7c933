// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinesync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aaglobalreachgmbh/fieldsync/offlinestore"
	"github.com/aaglobalreachgmbh/fieldsync/staticdata"
)

func newTestEngine(t *testing.T, remote RemoteService) (*Engine, *offlinestore.Store, *Monitor) {
	t.Helper()
	store := newTestStore(t)
	monitor := NewMonitor(nil)
	engine := New(store, remote, monitor, DefaultConfig(), nil)
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(engine.Close)
	return engine, store, monitor
}

// Scenario: empty caches at startup are primed from the bundled dataset
// so the app is usable offline on first run.
func TestStartPrimesEmptyCaches(t *testing.T) {
	engine, store, _ := newTestEngine(t, &fakeRemote{})
	ctx := context.Background()

	require.True(t, engine.IsOfflineCapable())

	bundledHardware, err := staticdata.HardwareCatalog()
	require.NoError(t, err)
	bundledTariffs, err := staticdata.Tariffs()
	require.NoError(t, err)

	stats := engine.Stats()
	require.Equal(t, len(bundledHardware), stats.HardwareCount)
	require.Equal(t, len(bundledTariffs), stats.TariffCount)

	meta, err := store.CollectionMetadata(ctx, offlinestore.HardwareCatalog)
	require.NoError(t, err)
	require.Equal(t, staticdata.Version, meta.DataVersion)
}

func TestStartKeepsExistingCaches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceHardwareCatalog(ctx,
		[]offlinestore.HardwareCatalogItem{{ID: "hw-mine"}}, "v-mine"))
	require.NoError(t, store.ReplaceTariffs(ctx,
		[]offlinestore.TariffItem{{ID: "t-mine"}}, "v-mine"))

	engine := New(store, &fakeRemote{}, NewMonitor(nil), DefaultConfig(), nil)
	require.NoError(t, engine.Start(ctx))
	defer engine.Close()

	// Populated caches are not overwritten by the bundled dataset.
	stats := engine.Stats()
	require.Equal(t, 1, stats.HardwareCount)
	require.Equal(t, 1, stats.TariffCount)
}

// Scenario: connectivity returns with zero pending items and a reachable
// remote; the cycle succeeds and the last-sync timestamp moves.
func TestReconnectTriggersSync(t *testing.T) {
	remote := &fakeRemote{
		hardware: func() ([]offlinestore.HardwareCatalogItem, error) {
			return []offlinestore.HardwareCatalogItem{{ID: "hw-cloud"}}, nil
		},
	}
	engine, _, monitor := newTestEngine(t, remote)

	before := engine.Stats().LastSync
	require.NotNil(t, before)

	monitor.SetOnline(false)
	require.False(t, engine.IsOnline())
	monitor.SetOnline(true)

	require.Eventually(t, func() bool {
		return engine.SyncStatus() == StatusSuccess
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		last := engine.Stats().LastSync
		return last != nil && last.After(*before)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTriggerSyncWhileOffline(t *testing.T) {
	engine, _, monitor := newTestEngine(t, &fakeRemote{})
	monitor.SetOnline(false)

	_, err := engine.TriggerSync(context.Background())
	require.ErrorIs(t, err, ErrOffline)
	require.Equal(t, StatusIdle, engine.SyncStatus())
}

func TestSavePendingOfferUpdatesStats(t *testing.T) {
	engine, store, _ := newTestEngine(t, &fakeRemote{})
	ctx := context.Background()

	id, err := engine.SavePendingOffer(ctx, json.RawMessage(`{"tariff":"tf-biz-s"}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, 1, engine.Stats().PendingOffers)

	// The record is durable, not just counted.
	offers, err := store.AllPendingOffers(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, id, offers[0].ID)
}

func TestStatsRefreshAfterCycle(t *testing.T) {
	engine, store, _ := newTestEngine(t, &fakeRemote{})
	ctx := context.Background()

	_, err := engine.SavePendingOffer(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = engine.SavePendingCalculation(ctx, json.RawMessage(`{}`), "summary")
	require.NoError(t, err)
	require.Equal(t, 1, engine.Stats().PendingOffers)
	require.Equal(t, 1, engine.Stats().PendingCalculations)

	result, err := engine.TriggerSync(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)

	// The facade's own subscription recomputed the snapshot.
	require.Eventually(t, func() bool {
		stats := engine.Stats()
		return stats.PendingOffers == 0 && stats.PendingCalculations == 0
	}, 5*time.Second, 10*time.Millisecond)

	offers, err := store.AllPendingOffers(ctx)
	require.NoError(t, err)
	require.Empty(t, offers)
}

func TestVisitAndPhotoHelpers(t *testing.T) {
	engine, _, _ := newTestEngine(t, &fakeRemote{})
	ctx := context.Background()

	visitID, err := engine.SaveVisitReport(ctx, offlinestore.VisitInput{
		CustomerID: "cust-1",
		Notes:      "door was locked, retry Friday",
	})
	require.NoError(t, err)

	_, err = engine.AttachVisitPhoto(ctx, visitID, "aGVsbG8=", "entrance")
	require.NoError(t, err)

	stats := engine.Stats()
	require.Equal(t, 1, stats.PendingVisits)
	require.Equal(t, 1, stats.PendingPhotos)
}

func TestRequeueFailedViaFacade(t *testing.T) {
	engine, store, _ := newTestEngine(t, &fakeRemote{})
	ctx := context.Background()

	id, err := engine.SavePendingOffer(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, store.MarkOfferStatus(ctx, id, offlinestore.StatusFailed))

	n, err := engine.RequeueFailed(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	pending, err := store.ListPendingOffers(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinesync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aaglobalreachgmbh/fieldsync/offlinestore"
)

// fakeRemote is a RemoteService whose behavior is configured per test.
// Nil hooks mean success (uploads) or an empty result (fetches).
type fakeRemote struct {
	uploadOffer func(offlinestore.PendingOffer) error
	uploadCalc  func(offlinestore.PendingCalculation) error
	uploadVisit func(offlinestore.PendingVisit) error
	uploadPhoto func(offlinestore.PendingPhoto) error

	hardware   func() ([]offlinestore.HardwareCatalogItem, error)
	tariffs    func() ([]offlinestore.TariffItem, error)
	customers  func() ([]offlinestore.CachedCustomer, error)
	checklists func() ([]offlinestore.CachedChecklist, error)
}

func (f *fakeRemote) UploadOffer(_ context.Context, offer offlinestore.PendingOffer) error {
	if f.uploadOffer != nil {
		return f.uploadOffer(offer)
	}
	return nil
}

func (f *fakeRemote) UploadCalculation(_ context.Context, calc offlinestore.PendingCalculation) error {
	if f.uploadCalc != nil {
		return f.uploadCalc(calc)
	}
	return nil
}

func (f *fakeRemote) UploadVisit(_ context.Context, visit offlinestore.PendingVisit) error {
	if f.uploadVisit != nil {
		return f.uploadVisit(visit)
	}
	return nil
}

func (f *fakeRemote) UploadPhoto(_ context.Context, photo offlinestore.PendingPhoto) error {
	if f.uploadPhoto != nil {
		return f.uploadPhoto(photo)
	}
	return nil
}

func (f *fakeRemote) FetchHardwareCatalog(_ context.Context) ([]offlinestore.HardwareCatalogItem, error) {
	if f.hardware != nil {
		return f.hardware()
	}
	return nil, nil
}

func (f *fakeRemote) FetchTariffs(_ context.Context) ([]offlinestore.TariffItem, error) {
	if f.tariffs != nil {
		return f.tariffs()
	}
	return nil, nil
}

func (f *fakeRemote) FetchCustomers(_ context.Context) ([]offlinestore.CachedCustomer, error) {
	if f.customers != nil {
		return f.customers()
	}
	return nil, nil
}

func (f *fakeRemote) FetchChecklists(_ context.Context) ([]offlinestore.CachedChecklist, error) {
	if f.checklists != nil {
		return f.checklists()
	}
	return nil, nil
}

func newTestStore(t *testing.T) *offlinestore.Store {
	t.Helper()
	store, err := offlinestore.Open(filepath.Join(t.TempDir(), "offline.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

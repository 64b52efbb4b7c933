// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

// Package offlinesync implements the offline operating mode of the
// field-sales application: a connectivity monitor, a sync coordinator
// that reconciles the local store with the remote backend, and the
// facade the rest of the application consumes.
package offlinesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aaglobalreachgmbh/fieldsync/offlinestore"
	"github.com/aaglobalreachgmbh/fieldsync/staticdata"
)

// Engine aggregates monitor, store and coordinator behind the single
// surface the UI talks to. Construct one per process in the composition
// root; tests construct isolated instances.
type Engine struct {
	store   *offlinestore.Store
	coord   *Coordinator
	monitor *Monitor
	cfg     Config
	logger  *slog.Logger

	mu      sync.RWMutex
	stats   offlinestore.Stats
	capable bool

	listener        *Listener
	unhookReconnect func()
}

// New wires an engine from its parts. The store must already be open;
// callers that fail to open it report offline capability as unavailable
// instead of constructing an engine.
func New(store *offlinestore.Store, remote RemoteService, monitor *Monitor, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		coord:   NewCoordinator(store, remote, cfg, logger),
		monitor: monitor,
		cfg:     cfg,
		logger:  logger.With("component", "offline"),
	}
}

// Start primes empty caches from the bundled dataset, computes the first
// stats snapshot and hooks reconnect-triggered syncing. Priming is a
// bootstrap, not a sync cycle: it runs once so the app is usable offline
// on first run after install.
func (e *Engine) Start(ctx context.Context) error {
	if !e.store.DataAvailable(ctx) {
		if err := e.primeCaches(ctx); err != nil {
			return fmt.Errorf("failed to prime offline caches: %w", err)
		}
	}

	e.mu.Lock()
	e.capable = e.store.DataAvailable(ctx)
	e.mu.Unlock()

	if err := e.RefreshStats(ctx); err != nil {
		return err
	}

	// Recompute stats after every finished cycle.
	e.listener = e.coord.Subscribe(func(status Status) {
		if status != StatusSuccess && status != StatusError {
			return
		}
		if err := e.RefreshStats(context.Background()); err != nil {
			e.logger.Warn("stats refresh after sync failed", "error", err)
		}
	})

	// Drain outboxes in the background whenever connectivity returns.
	e.unhookReconnect = e.monitor.OnReconnect(func() {
		e.logger.Info("back online, triggering sync")
		go func() {
			if _, err := e.coord.Sync(context.Background()); err != nil {
				e.logger.Warn("reconnect sync rejected", "error", err)
			}
		}()
	})

	return nil
}

// Close detaches the engine from its monitor and coordinator. It does
// not close the store; the composition root owns that lifecycle.
func (e *Engine) Close() {
	if e.unhookReconnect != nil {
		e.unhookReconnect()
		e.unhookReconnect = nil
	}
	if e.listener != nil {
		e.listener.Unsubscribe()
		e.listener = nil
	}
}

func (e *Engine) primeCaches(ctx context.Context) error {
	hardware, err := staticdata.HardwareCatalog()
	if err != nil {
		return err
	}
	tariffs, err := staticdata.Tariffs()
	if err != nil {
		return err
	}
	if err := e.store.ReplaceHardwareCatalog(ctx, hardware, staticdata.Version); err != nil {
		return err
	}
	if err := e.store.ReplaceTariffs(ctx, tariffs, staticdata.Version); err != nil {
		return err
	}
	e.logger.Info("offline cache primed from bundled dataset",
		"hardware", len(hardware), "tariffs", len(tariffs))
	return nil
}

// IsOnline reports current connectivity.
func (e *Engine) IsOnline() bool { return e.monitor.Online() }

// IsOfflineCapable reports whether the reference caches have been
// populated at least once, i.e. the calculator works without a network.
func (e *Engine) IsOfflineCapable() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.capable
}

// SyncStatus returns the coordinator's current status.
func (e *Engine) SyncStatus() Status { return e.coord.Status() }

// Subscribe exposes coordinator status transitions to further listeners
// (status indicator, toasts).
func (e *Engine) Subscribe(fn func(Status)) *Listener { return e.coord.Subscribe(fn) }

// Stats returns the last computed snapshot.
func (e *Engine) Stats() offlinestore.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// RefreshStats recomputes the snapshot from the store.
func (e *Engine) RefreshStats(ctx context.Context) error {
	stats, err := e.store.StorageStats(ctx, e.cfg.MaxUploadAttempts)
	if err != nil {
		return fmt.Errorf("failed to compute storage stats: %w", err)
	}
	capable := e.store.DataAvailable(ctx)

	e.mu.Lock()
	e.stats = stats
	e.capable = capable
	e.mu.Unlock()
	return nil
}

// TriggerSync runs a sync cycle now. It fails fast with ErrOffline when
// the device has no connectivity and with ErrSyncInProgress when a cycle
// is already running.
func (e *Engine) TriggerSync(ctx context.Context) (Result, error) {
	if !e.monitor.Online() {
		return Result{Status: e.coord.Status()}, ErrOffline
	}
	return e.coord.Sync(ctx)
}

// SavePendingOffer queues a draft offer for upload and returns its id.
// The record is durable when the call returns. Queueing while online is
// allowed; the next cycle drains it.
func (e *Engine) SavePendingOffer(ctx context.Context, config json.RawMessage) (string, error) {
	id, err := e.store.AddPendingOffer(ctx, config)
	if err != nil {
		return "", err
	}
	if err := e.RefreshStats(ctx); err != nil {
		e.logger.Warn("stats refresh after enqueue failed", "error", err)
	}
	return id, nil
}

// SavePendingCalculation queues a margin calculation for upload.
func (e *Engine) SavePendingCalculation(ctx context.Context, config json.RawMessage, summary string) (string, error) {
	id, err := e.store.AddPendingCalculation(ctx, config, summary)
	if err != nil {
		return "", err
	}
	if err := e.RefreshStats(ctx); err != nil {
		e.logger.Warn("stats refresh after enqueue failed", "error", err)
	}
	return id, nil
}

// SaveVisitReport queues a visit report created in the field.
func (e *Engine) SaveVisitReport(ctx context.Context, in offlinestore.VisitInput) (string, error) {
	id, err := e.store.AddPendingVisit(ctx, in)
	if err != nil {
		return "", err
	}
	if err := e.RefreshStats(ctx); err != nil {
		e.logger.Warn("stats refresh after enqueue failed", "error", err)
	}
	return id, nil
}

// AttachVisitPhoto queues a photo for a visit report.
func (e *Engine) AttachVisitPhoto(ctx context.Context, visitID, base64Data, caption string) (string, error) {
	id, err := e.store.AddPendingPhoto(ctx, visitID, base64Data, caption)
	if err != nil {
		return "", err
	}
	if err := e.RefreshStats(ctx); err != nil {
		e.logger.Warn("stats refresh after enqueue failed", "error", err)
	}
	return id, nil
}

// RequeueFailed gives every failed outbox item a fresh set of upload
// attempts (the "retry unsynced items" action in the UI).
func (e *Engine) RequeueFailed(ctx context.Context) (int, error) {
	n, err := e.store.RequeueFailed(ctx)
	if err != nil {
		return n, err
	}
	if err := e.RefreshStats(ctx); err != nil {
		e.logger.Warn("stats refresh after requeue failed", "error", err)
	}
	return n, nil
}

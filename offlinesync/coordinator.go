// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aaglobalreachgmbh/fieldsync/offlinestore"
	"github.com/aaglobalreachgmbh/fieldsync/staticdata"
)

// Status is the coordinator's externally visible state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Config tunes a sync coordinator.
type Config struct {
	// MaxUploadAttempts is the give-up threshold per outbox item: items
	// whose retry count has reached it are skipped during a drain and
	// reported as stalled. 0 retries forever.
	MaxUploadAttempts int

	// DataVersion is stamped onto reference caches on refresh.
	DataVersion string

	// RequestTimeout bounds each remote call made by the HTTP client.
	RequestTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxUploadAttempts: 5,
		DataVersion:       staticdata.Version,
		RequestTimeout:    30 * time.Second,
	}
}

// UploadCounts reports confirmed uploads per outbox for one cycle.
type UploadCounts struct {
	Offers       int
	Calculations int
	Visits       int
	Photos       int
}

// DownloadCounts reports refreshed reference-cache sizes for one cycle.
type DownloadCounts struct {
	Hardware   int
	Tariffs    int
	Customers  int
	Checklists int
}

// Result summarizes one sync cycle. Individual item failures land in
// Errors and flip Status to error; they never abort the cycle.
type Result struct {
	Status     Status
	Uploaded   UploadCounts
	Downloaded DownloadCounts
	Stalled    int
	Errors     []string
}

// Listener is a live status subscription. Unsubscribe is idempotent.
type Listener struct {
	c  *Coordinator
	id int
}

// Unsubscribe removes the listener from the coordinator.
func (l *Listener) Unsubscribe() {
	l.c.mu.Lock()
	delete(l.c.listeners, l.id)
	l.c.mu.Unlock()
}

// Coordinator reconciles the local store with the remote service: it
// drains the outbox queues (uploads first, user-created data must not be
// lost to a stale catalog) and then refreshes the reference caches
// best-effort. At most one cycle runs at a time.
type Coordinator struct {
	store  *offlinestore.Store
	remote RemoteService
	cfg    Config
	logger *slog.Logger

	// inFlight is the engine's only mutual-exclusion primitive: set
	// before the first drain phase, cleared after aggregation on every
	// exit path.
	inFlight atomic.Bool

	mu        sync.Mutex
	status    Status
	listeners map[int]func(Status)
	nextID    int
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(store *offlinestore.Store, remote RemoteService, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:     store,
		remote:    remote,
		cfg:       cfg,
		logger:    logger.With("component", "sync"),
		status:    StatusIdle,
		listeners: make(map[int]func(Status)),
	}
}

// Status returns the current cycle status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Syncing reports whether a cycle is currently running.
func (c *Coordinator) Syncing() bool {
	return c.inFlight.Load()
}

// Subscribe registers fn for every status transition. Invocation is
// synchronous; listeners must not do long-running work inline.
func (c *Coordinator) Subscribe(fn func(Status)) *Listener {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return &Listener{c: c, id: id}
}

func (c *Coordinator) setStatus(status Status) {
	c.mu.Lock()
	c.status = status
	fns := make([]func(Status), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}

// Sync runs one full cycle: drain offers, calculations, visits and
// photos, then refresh the reference caches. A trigger while a cycle is
// in flight returns ErrSyncInProgress immediately with the current
// status; it is not queued.
func (c *Coordinator) Sync(ctx context.Context) (Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return Result{Status: c.Status()}, ErrSyncInProgress
	}
	defer c.inFlight.Store(false)

	c.setStatus(StatusSyncing)
	result := Result{Status: StatusSyncing}

	// Phases run in strict order; a crash mid-drain leaves uploaded
	// items removed and the rest pending, which is safe to resume.
	c.drainOffers(ctx, &result)
	c.drainCalculations(ctx, &result)
	c.drainVisits(ctx, &result)
	c.drainPhotos(ctx, &result)
	c.refreshCaches(ctx, &result)

	if len(result.Errors) > 0 {
		result.Status = StatusError
	} else {
		result.Status = StatusSuccess
	}
	c.setStatus(result.Status)

	c.logger.Info("sync cycle complete",
		"status", result.Status,
		"uploadedOffers", result.Uploaded.Offers,
		"uploadedCalculations", result.Uploaded.Calculations,
		"uploadedVisits", result.Uploaded.Visits,
		"uploadedPhotos", result.Uploaded.Photos,
		"stalled", result.Stalled,
		"errors", len(result.Errors))

	return result, nil
}

// stalled reports whether an item has exhausted its upload attempts.
func (c *Coordinator) stalled(retryCount int) bool {
	return c.cfg.MaxUploadAttempts > 0 && retryCount >= c.cfg.MaxUploadAttempts
}

func (c *Coordinator) drainOffers(ctx context.Context, result *Result) {
	offers, err := c.store.AllPendingOffers(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list offers: %v", err))
		return
	}
	for _, offer := range offers {
		if c.stalled(offer.RetryCount) {
			result.Stalled++
			continue
		}
		if err := c.remote.UploadOffer(ctx, offer); err != nil {
			c.markFailed(ctx, result, "offer", offer.ID, err, func() error {
				return c.store.MarkOfferStatus(ctx, offer.ID, offlinestore.StatusFailed)
			})
			continue
		}
		if err := c.store.RemovePendingOffer(ctx, offer.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("offer %s: remove after upload: %v", offer.ID, err))
			continue
		}
		result.Uploaded.Offers++
	}
}

func (c *Coordinator) drainCalculations(ctx context.Context, result *Result) {
	calcs, err := c.store.AllPendingCalculations(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list calculations: %v", err))
		return
	}
	for _, calc := range calcs {
		if c.stalled(calc.RetryCount) {
			result.Stalled++
			continue
		}
		if err := c.remote.UploadCalculation(ctx, calc); err != nil {
			c.markFailed(ctx, result, "calculation", calc.ID, err, func() error {
				return c.store.MarkCalculationStatus(ctx, calc.ID, offlinestore.StatusFailed)
			})
			continue
		}
		if err := c.store.RemovePendingCalculation(ctx, calc.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("calculation %s: remove after upload: %v", calc.ID, err))
			continue
		}
		result.Uploaded.Calculations++
	}
}

func (c *Coordinator) drainVisits(ctx context.Context, result *Result) {
	visits, err := c.store.AllPendingVisits(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list visits: %v", err))
		return
	}
	for _, visit := range visits {
		if c.stalled(visit.RetryCount) {
			result.Stalled++
			continue
		}
		if err := c.remote.UploadVisit(ctx, visit); err != nil {
			c.markFailed(ctx, result, "visit", visit.ID, err, func() error {
				return c.store.MarkVisitStatus(ctx, visit.ID, offlinestore.StatusFailed)
			})
			continue
		}
		if err := c.store.RemovePendingVisit(ctx, visit.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("visit %s: remove after upload: %v", visit.ID, err))
			continue
		}
		result.Uploaded.Visits++
	}
}

// drainPhotos uploads queued photos whose visit report is no longer
// queued locally (i.e. the report exists server-side). Photos of a visit
// that is still pending are held back without counting as an error.
func (c *Coordinator) drainPhotos(ctx context.Context, result *Result) {
	photos, err := c.store.ListPendingPhotos(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list photos: %v", err))
		return
	}
	if len(photos) == 0 {
		return
	}

	// Any visit still in the collection, failed ones included, has not
	// been accepted by the server yet; its photos must wait.
	queuedVisits := make(map[string]bool)
	if visits, err := c.store.AllPendingVisits(ctx); err == nil {
		for _, v := range visits {
			queuedVisits[v.ID] = true
		}
	}

	for _, photo := range photos {
		if queuedVisits[photo.VisitID] {
			continue // visit upload failed this cycle, photo waits with it
		}
		if err := c.remote.UploadPhoto(ctx, photo); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("photo %s: %v", photo.ID, err))
			continue
		}
		if err := c.store.RemovePendingPhoto(ctx, photo.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("photo %s: remove after upload: %v", photo.ID, err))
			continue
		}
		result.Uploaded.Photos++
	}
}

// refreshCaches pulls the reference catalogs best-effort. A failed
// refresh keeps the existing cache and is logged, never escalated: stale
// reference data is an acceptable degradation, a lost upload is not.
func (c *Coordinator) refreshCaches(ctx context.Context, result *Result) {
	if items, err := c.remote.FetchHardwareCatalog(ctx); err != nil {
		c.logger.Warn("hardware catalog refresh failed, keeping cached data", "error", err)
	} else if len(items) > 0 {
		if err := c.store.ReplaceHardwareCatalog(ctx, items, c.cfg.DataVersion); err != nil {
			c.logger.Warn("failed to store refreshed hardware catalog", "error", err)
		} else {
			result.Downloaded.Hardware = len(items)
		}
	}

	if items, err := c.remote.FetchTariffs(ctx); err != nil {
		c.logger.Warn("tariff refresh failed, keeping cached data", "error", err)
	} else if len(items) > 0 {
		if err := c.store.ReplaceTariffs(ctx, items, c.cfg.DataVersion); err != nil {
			c.logger.Warn("failed to store refreshed tariffs", "error", err)
		} else {
			result.Downloaded.Tariffs = len(items)
		}
	}

	if items, err := c.remote.FetchCustomers(ctx); err != nil {
		c.logger.Warn("customer refresh failed, keeping cached data", "error", err)
	} else if len(items) > 0 {
		if err := c.store.ReplaceCustomers(ctx, items, c.cfg.DataVersion); err != nil {
			c.logger.Warn("failed to store refreshed customers", "error", err)
		} else {
			result.Downloaded.Customers = len(items)
		}
	}

	if items, err := c.remote.FetchChecklists(ctx); err != nil {
		c.logger.Warn("checklist refresh failed, keeping cached data", "error", err)
	} else if len(items) > 0 {
		if err := c.store.ReplaceChecklists(ctx, items, c.cfg.DataVersion); err != nil {
			c.logger.Warn("failed to store refreshed checklists", "error", err)
		} else {
			result.Downloaded.Checklists = len(items)
		}
	}
}

// markFailed records an upload failure: the item stays queued with
// status failed (bumping its retry count) and the error joins the
// cycle's error list.
func (c *Coordinator) markFailed(ctx context.Context, result *Result, kind, id string, uploadErr error, mark func() error) {
	if err := mark(); err != nil {
		c.logger.Warn("failed to mark outbox item failed", "kind", kind, "id", id, "error", err)
	}
	result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", kind, id, uploadErr))
}

// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinesync

import (
	"context"
	"sync"
	"time"
)

// Prober re-evaluates the platform's connectivity signal on demand.
// It should be cheap; a typical implementation is a HEAD request against
// the backend's health endpoint.
type Prober func(ctx context.Context) bool

// Monitor tracks the device's online/offline state. It is a signal
// relay, not a prober: transitions are pushed in via SetOnline (or pulled
// once via Retry) and reconnect callbacks fire exactly once per
// offline-to-online edge, not once per redundant online signal.
//
// A fresh monitor starts online. When no probe source is available the
// engine must not permanently disable itself, so absence of signal means
// online.
type Monitor struct {
	prober Prober

	mu           sync.Mutex
	online       bool
	wasOffline   bool
	lastOnlineAt time.Time
	handlers     map[int]func()
	nextID       int
}

// NewMonitor creates a monitor in the online state. prober may be nil;
// Retry then keeps the current state.
func NewMonitor(prober Prober) *Monitor {
	return &Monitor{
		prober:       prober,
		online:       true,
		lastOnlineAt: time.Now(),
		handlers:     make(map[int]func()),
	}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// WasOffline reports whether the device has been offline at some point
// since the monitor was created.
func (m *Monitor) WasOffline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wasOffline
}

// LastOnlineAt returns the time of the last transition to online (or the
// monitor's creation time if no transition has happened).
func (m *Monitor) LastOnlineAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOnlineAt
}

// SetOnline feeds a platform connectivity transition into the monitor.
// Redundant signals (online while already online) are absorbed.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online

	var fire []func()
	if online && !wasOnline {
		m.lastOnlineAt = time.Now()
		for _, h := range m.handlers {
			fire = append(fire, h)
		}
	}
	if !online {
		m.wasOffline = true
	}
	m.mu.Unlock()

	// Handlers run outside the lock so they may query the monitor.
	for _, h := range fire {
		h()
	}
}

// Retry re-evaluates connectivity via the prober and feeds the outcome
// through the same transition path as a real platform event.
func (m *Monitor) Retry(ctx context.Context) {
	if m.prober == nil {
		return
	}
	m.SetOnline(m.prober(ctx))
}

// OnReconnect registers fn to run on every offline-to-online edge and
// returns an unregister func. fn must not block; it runs on the goroutine
// delivering the transition.
func (m *Monitor) OnReconnect(fn func()) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

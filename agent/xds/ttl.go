// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

import (
	"sync"
	"time"
)

// Clock abstracts the timer source a ttlTracker arms deadlines against.
// Exported so a caller can swap in a fake for deterministic tests of code
// built on top of Subscription, the same way this package's own tests do via
// WithClock. Mirrors the teacher's direct use of time.AfterFunc
// (agent/remote_exec.go) but through a small seam.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the minimal handle a Clock hands back for a single armed timer.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ttlTracker is the per-resource-name expiry tracker from spec §3/§4.5: a
// mapping name -> deadline, armed and cancelled in batches under a single
// "TTL-scope" per response, that fires a batched "expired" callback when
// deadlines lapse without being refreshed.
type ttlTracker struct {
	mu        sync.Mutex
	clock     Clock
	timers    map[string]Timer
	onExpired func(names []string)

	pendingExpired []string
	flushArmed     bool
	flushTimer     Timer
	closed         bool
}

func newTTLTracker(onExpired func(names []string)) *ttlTracker {
	return &ttlTracker{
		clock:     realClock{},
		timers:    make(map[string]Timer),
		onExpired: onExpired,
	}
}

// scope begins a batch of TTL arm/cancel operations for a single incoming
// response (spec §4.5 step 1: "TTL cancellations and refreshes are batched
// across the response under a single TTL-scope"). Callers invoke arm/cancel
// on the returned handle for every resource in the response, in any order.
type ttlScope struct {
	t *ttlTracker
}

func (t *ttlTracker) scope() *ttlScope {
	return &ttlScope{t: t}
}

// arm (re)arms the timer for name to fire after d elapses, replacing any
// existing timer for that name.
func (s *ttlScope) arm(name string, d time.Duration) {
	t := s.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.timers[name]; ok {
		existing.Stop()
	}
	t.timers[name] = t.clock.AfterFunc(d, func() { t.fire(name) })
}

// cancel stops and removes any existing timer for name.
func (s *ttlScope) cancel(name string) {
	t := s.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.timers[name]; ok {
		existing.Stop()
		delete(t.timers, name)
	}
}

// cancelAll stops and removes every outstanding timer, used on teardown
// (spec §5 "Cancellation": "dropping the state machine cancels all
// outstanding TTL timers"). No onExpired callback fires after cancelAll
// returns, including one already scheduled to coalesce a batch of expiries.
func (t *ttlTracker) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, timer := range t.timers {
		timer.Stop()
		delete(t.timers, name)
	}
	if t.flushTimer != nil {
		t.flushTimer.Stop()
		t.flushTimer = nil
	}
	t.pendingExpired = nil
	t.flushArmed = false
	t.closed = true
}

// fire is invoked (possibly concurrently, from the timer's own goroutine) on
// expiry of a single name's deadline. Names that lapse in the same instant
// are coalesced into a single onExpired callback.
func (t *ttlTracker) fire(name string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if _, stillArmed := t.timers[name]; !stillArmed {
		t.mu.Unlock()
		return
	}
	delete(t.timers, name)
	t.pendingExpired = append(t.pendingExpired, name)
	if t.flushArmed {
		t.mu.Unlock()
		return
	}
	t.flushArmed = true
	// Coalesce any other timers firing on this same tick before reporting.
	// Uses the real clock regardless of t.clock, since this is an internal
	// debounce window rather than a caller-visible TTL deadline; tracked in
	// flushTimer so cancelAll can still stop it.
	t.flushTimer = time.AfterFunc(time.Millisecond, t.flush)
	t.mu.Unlock()
}

func (t *ttlTracker) flush() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	names := t.pendingExpired
	t.pendingExpired = nil
	t.flushArmed = false
	t.flushTimer = nil
	cb := t.onExpired
	t.mu.Unlock()

	if len(names) > 0 && cb != nil {
		cb(names)
	}
}

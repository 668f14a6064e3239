// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

import (
	"github.com/hashicorp/go-hclog"
)

// Subscription is the per-type-URL controller (component F, spec §4.6/§4.7):
// it owns the resource table (A), the pending-delta buffer (B), the TTL
// tracker (C), and the stream-scoped flags, and exposes the four entry
// points a caller's single dispatcher thread drives (spec §5).
//
// All exported methods must be called from the same goroutine; there is no
// internal locking (spec §5: "No internal locking; correctness depends on
// the serial execution discipline").
type Subscription struct {
	typeURL string
	watcher Watcher
	logger  hclog.Logger

	table   *resourceTable
	pending *pendingDelta
	ttl     *ttlTracker

	heartbeatsEnabled heartbeatGate
	metricPrefix      []string

	// dispatch marshals a TTL expiry callback (which fires from the TTL
	// tracker's own timer goroutine, per time.AfterFunc) onto the caller's
	// single dispatcher thread, preserving spec §5's "every entry point...
	// invoked on that thread" guarantee for the one callback this package
	// itself schedules asynchronously. Defaults to a direct synchronous
	// call, which is only safe if nothing else touches this Subscription
	// concurrently; real dispatcher-loop callers should supply
	// WithDispatcher.
	dispatch func(func())

	// anyRequestSentYet and dynamicContextChanged are the stream-scoped
	// flags from spec §3, reset whenever the transport opens a fresh
	// stream. HandleEstablishmentFailure resets anyRequestSentYet; a
	// caller that reconnects without a reported failure should construct
	// a new Subscription per stream instead of reusing flags across it.
	anyRequestSentYet     bool
	dynamicContextChanged bool

	// wildcard tracks the teacher-derived supplement (SPEC_FULL.md): true
	// until the first UpdateInterest call with a non-empty added set.
	wildcard bool
}

// SubscriptionOption configures optional Subscription behavior at
// construction time.
type SubscriptionOption func(*Subscription)

// WithLogger sets the hclog.Logger used for Trace/Debug/Warn/Error
// diagnostics. Defaults to hclog.NewNullLogger().
func WithLogger(logger hclog.Logger) SubscriptionOption {
	return func(s *Subscription) { s.logger = logger }
}

// WithHeartbeats sets whether heartbeat classification (spec §4.5) is
// enabled for this subscription's type URL. Defaults to enabled.
func WithHeartbeats(enabled bool) SubscriptionOption {
	return func(s *Subscription) { s.heartbeatsEnabled = func() bool { return enabled } }
}

// WithHeartbeatGate sets a runtime-queryable heartbeat feature gate (spec
// §6), for callers whose toggle can change after construction.
func WithHeartbeatGate(gate func() bool) SubscriptionOption {
	return func(s *Subscription) { s.heartbeatsEnabled = gate }
}

// WithDispatcher sets the function used to marshal a TTL expiry callback
// onto the caller's single event-loop/dispatcher thread (spec §5). post is
// expected to either run fn synchronously (if already on that thread) or
// enqueue it and return.
func WithDispatcher(post func(fn func())) SubscriptionOption {
	return func(s *Subscription) { s.dispatch = post }
}

// WithClock overrides the timer source the TTL tracker arms deadlines
// against. Defaults to the real wall clock (time.AfterFunc); callers driving
// TTL expiry deterministically in their own tests can supply a fake Clock.
func WithClock(clock Clock) SubscriptionOption {
	return func(s *Subscription) { s.ttl.clock = clock }
}

// WithMetricsPrefix sets the counter-name prefix used by every metric this
// Subscription increments (default {"xds", "subscription"}), matching the
// teacher's practice of namespacing metrics.IncrCounter calls by subsystem.
// Useful when multiple Subscriptions run side by side and need distinct
// counter names.
func WithMetricsPrefix(prefix ...string) SubscriptionOption {
	return func(s *Subscription) { s.metricPrefix = prefix }
}

// NewSubscription creates the state machine for one type URL. watcher is
// borrowed: its lifetime must exceed the Subscription's (spec §5), and
// Close severs the reference.
func NewSubscription(typeURL string, watcher Watcher, opts ...SubscriptionOption) *Subscription {
	s := &Subscription{
		typeURL:           typeURL,
		watcher:           watcher,
		table:             newResourceTable(),
		pending:           newPendingDelta(),
		heartbeatsEnabled: func() bool { return true },
		metricPrefix:      defaultMetricPrefix,
		wildcard:          true,
		dispatch:          func(fn func()) { fn() },
	}
	s.ttl = newTTLTracker(func(names []string) {
		s.dispatch(func() { s.onTTLExpired(names) })
	})
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = hclog.NewNullLogger()
	}
	s.logger = s.logger.Named("xds.subscription").With("type_url", typeURL)
	return s
}

// UpdateInterest applies an interest delta (component B mutation, spec
// §4.2). Both added and removed may be nil/empty; update_interest(∅, ∅) is a
// documented no-op.
func (s *Subscription) UpdateInterest(added, removed []string) {
	if len(added) > 0 {
		s.wildcard = false
	}
	updateInterest(s.table, s.pending, added, removed)
	if len(added) > 0 || len(removed) > 0 {
		s.logger.Trace("updated interest", "added", len(added), "removed", len(removed))
	}
}

// MarkDynamicContextChanged flags that observability labels the server
// should see have mutated since the last request was sent (spec §3). Cleared
// by MarkRequestSent once the caller has actually sent a request built after
// the change.
func (s *Subscription) MarkDynamicContextChanged() {
	s.dynamicContextChanged = true
}

// SubscriptionUpdatePending implements the predicate from spec §4.3.
func (s *Subscription) SubscriptionUpdatePending() bool {
	return !s.pending.isEmpty() || !s.anyRequestSentYet || s.dynamicContextChanged
}

// NextRequest builds the next delta discovery request (component D, spec
// §4.4). ack is the acknowledgement produced by the most recent
// HandleResponse call, or nil if none is pending. dynamic_context_changed is
// left untouched here; the caller must invoke MarkRequestSent once the
// returned request has actually gone out over the wire, per spec §4.4 step
// 5's "the caller... is responsible for marking dynamic_context_changed =
// false after a successful send." Clearing it here instead would lose a
// pending context change if the send itself failed.
func (s *Subscription) NextRequest(ack *Ack) *Request {
	req := buildRequest(s.typeURL, s.table, s.pending, &s.anyRequestSentYet, &s.wildcard, ack)
	s.logger.Trace("built delta request",
		"subscribe", len(req.ResourceNamesSubscribe), "unsubscribe", len(req.ResourceNamesUnsubscribe))
	return req
}

// MarkRequestSent clears dynamic_context_changed after the caller has
// successfully sent a request built by NextRequest (spec §4.4 step 5).
func (s *Subscription) MarkRequestSent() {
	s.dynamicContextChanged = false
}

// HandleResponse validates and applies an incoming delta response (component
// E, spec §4.5), invokes the watcher, and returns the ack to echo on the
// next request.
func (s *Subscription) HandleResponse(resp *Response) *Ack {
	outcome := handleResponse(s.table, s.ttl, s.heartbeatsEnabled(), resp)

	if outcome.validationError {
		s.logger.Warn("rejecting malformed delta response", "error", outcome.ack.Error.GetMessage())
		incrCounter(s.metricPrefix, s.typeURL, metricKeyNack)
		s.watcher.OnUpdateFailed(UpdateRejected, outcome.ack.toError())
		return outcome.ack
	}

	if outcome.heartbeatsSeen > 0 {
		incrCounter(s.metricPrefix, s.typeURL, metricKeyHeartbeat)
	}

	// Heartbeats never reach the watcher. An empty response (no resources, no
	// removals) is still a valid, ack-worthy no-op, and the watcher is still
	// invoked with empty slices, matching spec §4.5 step 3's unconditional
	// call.
	if err := s.watcher.OnConfigUpdate(outcome.addedOrUpdated, outcome.removedNames, outcome.systemVersion); err != nil {
		s.logger.Warn("watcher rejected config update", "error", err)
		incrCounter(s.metricPrefix, s.typeURL, metricKeyUpdateRejected)
		incrCounter(s.metricPrefix, s.typeURL, metricKeyNack)
		s.watcher.OnUpdateFailed(UpdateRejected, err)
		return nackFor(resp, err)
	}

	incrCounter(s.metricPrefix, s.typeURL, metricKeyAck)
	return outcome.ack
}

// HandleEstablishmentFailure implements spec §4.6: the stream could not be
// (re-)established. The table is left unchanged; any_request_sent_yet is
// reset so the next opportunity sends a full snapshot (spec §4.4).
func (s *Subscription) HandleEstablishmentFailure() {
	s.logger.Debug("stream establishment failed")
	incrCounter(s.metricPrefix, s.typeURL, metricKeyEstablishFailure)
	s.anyRequestSentYet = false
	s.watcher.OnUpdateFailed(ConnectionFailure, nil)
}

// onTTLExpired implements spec §4.6: set each name to Waiting and invoke the
// watcher with a synthetic removal, no network action.
func (s *Subscription) onTTLExpired(names []string) {
	for _, name := range names {
		s.table.setWaiting(name)
	}
	incrCounter(s.metricPrefix, s.typeURL, metricKeyTTLExpired)
	s.logger.Trace("ttl expired", "names", names)
	_ = s.watcher.OnConfigUpdate(nil, names, "")
}

// Close cancels all outstanding TTL timers and severs the watcher reference.
// No callbacks fire after Close returns (spec §5 "Cancellation").
func (s *Subscription) Close() {
	s.ttl.cancelAll()
	s.watcher = noopWatcher{}
}

type noopWatcher struct{}

func (noopWatcher) OnConfigUpdate([]*Resource, []string, string) error { return nil }
func (noopWatcher) OnUpdateFailed(FailureReason, error)                {}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// pendingDelta is the pending-delta buffer from spec §3/§4.2: the two
// disjoint name sets accumulated between outgoing requests.
// to_subscribe ∩ to_unsubscribe = ∅ holds at every quiescent moment because
// every mutation below removes a name from the other set before adding it to
// this one.
type pendingDelta struct {
	toSubscribe   mapset.Set[string]
	toUnsubscribe mapset.Set[string]
}

func newPendingDelta() *pendingDelta {
	return &pendingDelta{
		toSubscribe:   mapset.NewThreadUnsafeSet[string](),
		toUnsubscribe: mapset.NewThreadUnsafeSet[string](),
	}
}

func (p *pendingDelta) isEmpty() bool {
	return p.toSubscribe.Cardinality() == 0 && p.toUnsubscribe.Cardinality() == 0
}

// subscribe records that name should be requested as a subscribe on the next
// request, per spec §4.2's "for each a in added" rule.
func (p *pendingDelta) subscribe(name string) {
	p.toUnsubscribe.Remove(name)
	p.toSubscribe.Add(name)
}

// unsubscribe records that name should be requested as an unsubscribe on the
// next request, per spec §4.2's "for each r in removed" rule.
func (p *pendingDelta) unsubscribe(name string) {
	p.toSubscribe.Remove(name)
	p.toUnsubscribe.Add(name)
}

// drain copies both sets out as slices and clears them, per request-builder
// step 3 (spec §4.4): "Clear both pending sets."
func (p *pendingDelta) drain() (subscribe, unsubscribe []string) {
	subscribe = p.toSubscribe.ToSlice()
	unsubscribe = p.toUnsubscribe.ToSlice()
	p.toSubscribe.Clear()
	p.toUnsubscribe.Clear()
	return subscribe, unsubscribe
}

// clearUnsubscribe drops every pending unsubscribe without sending it. Used
// on the first request of a stream (spec §4.4 step 1): "no meaningful
// unsubscribe on a brand-new stream."
func (p *pendingDelta) clearUnsubscribe() {
	p.toUnsubscribe.Clear()
}

// updateInterest applies spec §4.2 to the table and this buffer in one
// mutation: added names are (re)marked Waiting and queued to subscribe,
// removed names are dropped from the table and queued to unsubscribe.
func updateInterest(table *resourceTable, pending *pendingDelta, added, removed []string) {
	for _, name := range added {
		// The user signals re-interest, so any cached version is
		// conceptually forgotten (spec §4.2 step 1).
		table.setWaiting(name)
		pending.subscribe(name)
	}
	for _, name := range removed {
		table.remove(name)
		pending.unsubscribe(name)
	}
}

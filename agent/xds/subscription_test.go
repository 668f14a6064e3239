// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

// The update-pending predicate (spec §4.3) is a disjunction of four
// conditions; each case below isolates one of them while holding the others
// at their quiescent value.
func TestSubscriptionUpdatePending(t *testing.T) {
	t.Run("false immediately after the first request with nothing pending", func(t *testing.T) {
		sub := NewSubscription("type.test/Foo", &fakeWatcher{})
		sub.NextRequest(nil)
		require.False(t, sub.SubscriptionUpdatePending())
	})

	t.Run("true before any request has ever been sent", func(t *testing.T) {
		sub := NewSubscription("type.test/Foo", &fakeWatcher{})
		require.True(t, sub.SubscriptionUpdatePending())
	})

	t.Run("true while a subscribe is pending", func(t *testing.T) {
		sub := NewSubscription("type.test/Foo", &fakeWatcher{})
		sub.NextRequest(nil)
		sub.UpdateInterest([]string{"a"}, nil)
		require.True(t, sub.SubscriptionUpdatePending())
	})

	t.Run("true while an unsubscribe is pending", func(t *testing.T) {
		sub := NewSubscription("type.test/Foo", &fakeWatcher{})
		sub.UpdateInterest([]string{"a"}, nil)
		sub.NextRequest(nil)
		sub.UpdateInterest(nil, []string{"a"})
		require.True(t, sub.SubscriptionUpdatePending())
	})

	t.Run("true after MarkDynamicContextChanged, cleared by MarkRequestSent", func(t *testing.T) {
		sub := NewSubscription("type.test/Foo", &fakeWatcher{})
		sub.NextRequest(nil)
		sub.MarkRequestSent()
		require.False(t, sub.SubscriptionUpdatePending())

		sub.MarkDynamicContextChanged()
		require.True(t, sub.SubscriptionUpdatePending())

		// Building the request alone must not clear the flag — only a
		// confirmed send does.
		sub.NextRequest(nil)
		require.True(t, sub.SubscriptionUpdatePending())

		sub.MarkRequestSent()
		require.False(t, sub.SubscriptionUpdatePending())
	})
}

func TestWithClock_OverridesTTLTimerSource(t *testing.T) {
	clock := newFakeClock()
	sub := NewSubscription("type.test/Foo", &fakeWatcher{}, WithClock(clock))
	require.Same(t, clock, sub.ttl.clock)
}

func TestWithMetricsPrefix_OverridesDefault(t *testing.T) {
	sub := NewSubscription("type.test/Foo", &fakeWatcher{}, WithMetricsPrefix("custom", "prefix"))
	require.Equal(t, []string{"custom", "prefix"}, sub.metricPrefix)
}

func TestWithDispatcher_RoutesTTLExpiryThroughSuppliedFunc(t *testing.T) {
	var dispatched bool
	dispatcher := func(fn func()) {
		dispatched = true
		fn()
	}

	watcher := &fakeWatcher{}
	sub := NewSubscription("type.test/Foo", watcher, WithDispatcher(dispatcher))
	clock := newFakeClock()
	sub.ttl.clock = clock

	sub.UpdateInterest([]string{"a"}, nil)
	sub.NextRequest(nil)
	sub.HandleResponse(&Response{
		Nonce:   "n1",
		TypeUrl: "type.test/Foo",
		Resources: []*Resource{
			{Name: "a", Version: "v1", Resource: payload("type.test/Foo"), Ttl: durationpb.New(100 * time.Millisecond)},
		},
	})

	clock.fireAll()
	require.Eventually(t, func() bool {
		return dispatched && len(watcher.updates) == 2
	}, time.Second, time.Millisecond)
}

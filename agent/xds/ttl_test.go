// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests fire TTL callbacks synchronously instead of waiting
// on real wall-clock timers.
type fakeClock struct {
	armed map[string]func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{armed: make(map[string]func())}
}

type fakeTimer struct {
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	wasRunning := !f.stopped
	f.stopped = true
	return wasRunning
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	timer := &fakeTimer{}
	// Store the callback keyed by a unique slot so fireAll can invoke it
	// regardless of duration; tests call fireAll explicitly.
	idx := len(c.armed)
	key := timerKey(idx)
	c.armed[key] = func() {
		if !timer.stopped {
			f()
		}
	}
	return timer
}

func timerKey(i int) string {
	return "t" + string(rune('0'+i))
}

func (c *fakeClock) fireAll() {
	for _, f := range c.armed {
		f()
	}
}

func TestTTLTracker_ArmThenExpireFiresCallback(t *testing.T) {
	var gotNames []string
	done := make(chan struct{})
	tracker := newTTLTracker(func(names []string) {
		gotNames = append(gotNames, names...)
		close(done)
	})
	clock := newFakeClock()
	tracker.clock = clock

	scope := tracker.scope()
	scope.arm("a", time.Millisecond)

	clock.fireAll()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ttl flush")
	}
	require.Equal(t, []string{"a"}, gotNames)
}

func TestTTLTracker_CancelPreventsExpiry(t *testing.T) {
	fired := false
	tracker := newTTLTracker(func(names []string) { fired = true })
	clock := newFakeClock()
	tracker.clock = clock

	scope := tracker.scope()
	scope.arm("a", time.Millisecond)
	scope.cancel("a")

	clock.fireAll()
	time.Sleep(10 * time.Millisecond)

	require.False(t, fired)
}

func TestTTLTracker_RearmReplacesExistingTimer(t *testing.T) {
	tracker := newTTLTracker(func(names []string) {})
	clock := newFakeClock()
	tracker.clock = clock

	scope := tracker.scope()
	scope.arm("a", time.Millisecond)
	scope.arm("a", time.Hour)

	require.Len(t, tracker.timers, 1)
}

func TestTTLTracker_CancelAllStopsEverything(t *testing.T) {
	tracker := newTTLTracker(func(names []string) {})
	clock := newFakeClock()
	tracker.clock = clock

	scope := tracker.scope()
	scope.arm("a", time.Millisecond)
	scope.arm("b", time.Millisecond)

	tracker.cancelAll()
	require.Len(t, tracker.timers, 0)
}

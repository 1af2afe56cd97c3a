// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func ready(channel <-chan time.Time) bool {
	select {
	case <-channel:
		return true
	default:
		return false
	}
}

func TestFakeNowAdvances(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfterFiresAtDeadline(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	clock.Advance(2 * time.Second)
	if ready(channel) {
		t.Fatal("After fired before its deadline")
	}
	clock.Advance(time.Second)
	if !ready(channel) {
		t.Fatal("After did not fire at its deadline")
	}
	if count := clock.PendingCount(); count != 0 {
		t.Fatalf("PendingCount() = %d, want 0", count)
	}
}

func TestFakeAfterNonPositiveIsReady(t *testing.T) {
	clock := Fake(epoch)
	for _, duration := range []time.Duration{0, -time.Second} {
		if !ready(clock.After(duration)) {
			t.Errorf("After(%v) not ready immediately", duration)
		}
	}
	if count := clock.PendingCount(); count != 0 {
		t.Fatalf("PendingCount() = %d, want 0", count)
	}
}

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	late := clock.After(3 * time.Second)
	early := clock.After(time.Second)
	middle := clock.After(2 * time.Second)

	clock.Advance(time.Second)
	if !ready(early) || ready(middle) || ready(late) {
		t.Fatal("after 1s only the 1s wait should fire")
	}
	clock.Advance(5 * time.Second)
	if !ready(middle) || !ready(late) {
		t.Fatal("after 6s every wait should have fired")
	}
}

func TestFakeTimerStop(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)
	other := clock.NewTimer(time.Second)

	if !timer.Stop() {
		t.Fatal("Stop() on a pending timer = false, want true")
	}
	if timer.Stop() {
		t.Fatal("second Stop() = true, want false")
	}
	if count := clock.PendingCount(); count != 1 {
		t.Fatalf("PendingCount() = %d, want 1", count)
	}

	clock.Advance(time.Second)
	if ready(timer.C) {
		t.Fatal("stopped timer fired")
	}
	if !ready(other.C) {
		t.Fatal("remaining timer did not fire")
	}
	if other.Stop() {
		t.Fatal("Stop() after firing = true, want false")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Minute)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine did not observe the advanced clock")
	}
}

func TestRealTimer(t *testing.T) {
	clock := Real()
	timer := clock.NewTimer(time.Hour)
	if !timer.Stop() {
		t.Fatal("Stop() on a fresh real timer = false, want true")
	}
	select {
	case <-clock.After(time.Millisecond):
	case <-time.After(5 * time.Second):
		t.Fatal("real After did not fire")
	}
}

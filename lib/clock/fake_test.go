// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	if got, want := clock.Now(), epoch.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfterPartialAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(5 * time.Second)

	clock.Advance(3 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before deadline")
	default:
	}

	clock.Advance(2 * time.Second)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at exact deadline")
	}
}

func TestFakeClockAfterZeroDuration(t *testing.T) {
	clock := Fake(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) should be ready immediately")
	}
}

func TestFakeClockAfterFuncFiresOnce(t *testing.T) {
	clock := Fake(epoch)
	calls := 0
	clock.AfterFunc(20*time.Second, func() { calls++ })

	clock.Advance(19 * time.Second)
	if calls != 0 {
		t.Fatalf("callback ran %d times before deadline", calls)
	}
	clock.Advance(time.Second)
	clock.Advance(time.Minute)
	if calls != 1 {
		t.Fatalf("callback ran %d times, want 1", calls)
	}
}

func TestFakeClockStopIsIdempotent(t *testing.T) {
	clock := Fake(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("first Stop() = false, want true")
	}
	if timer.Stop() {
		t.Fatal("second Stop() = true, want false")
	}
	clock.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if clock.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d, want 0", clock.PendingCount())
	}
}

func TestFakeClockStopAfterFire(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.AfterFunc(time.Second, func() {})
	clock.Advance(time.Second)
	if timer.Stop() {
		t.Fatal("Stop() after fire = true, want false")
	}

	var nilTimer *Timer
	if nilTimer.Stop() {
		t.Fatal("Stop() on nil timer = true, want false")
	}
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	var order []string
	clock.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	clock.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	clock.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	clock.AfterFunc(2*time.Second, func() { order = append(order, "b2") })

	clock.Advance(10 * time.Second)

	want := []string{"a", "b", "b2", "c"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestFakeClockCallbackMayRegisterTimer(t *testing.T) {
	clock := Fake(epoch)
	second := false
	clock.AfterFunc(time.Second, func() {
		clock.AfterFunc(time.Second, func() { second = true })
	})

	clock.Advance(time.Second)
	if second {
		t.Fatal("nested timer fired early")
	}
	clock.Advance(time.Second)
	if !second {
		t.Fatal("nested timer did not fire")
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Second)
		close(done)
	}()

	clock.WaitForTimers(1)
	deadline, ok := clock.NextDeadline()
	if !ok || !deadline.Equal(epoch.Add(time.Second)) {
		t.Fatalf("NextDeadline() = %v, %v", deadline, ok)
	}
	clock.Advance(time.Second)
	<-done
}

package flow

import (
	"testing"
	"time"
)

func TestSimpleTimerFires(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	if _, err := timer.ScheduleAfter(10*time.Millisecond, func() { close(fired) }); err != nil {
		t.Fatalf("ScheduleAfter() error = %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled function never fired")
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	id, err := timer.ScheduleAfter(20*time.Millisecond, func() { close(fired) })
	if err != nil {
		t.Fatalf("ScheduleAfter() error = %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	select {
	case <-fired:
		t.Fatal("cancelled function still fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestSimpleTimerCancelUnknownID(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	if err := timer.Cancel("no_such_timer"); err != nil {
		t.Errorf("Cancel() error = %v, want nil for unknown ID", err)
	}
}

func TestSimpleTimerStopCancelsAll(t *testing.T) {
	timer := NewSimpleTimer()

	fired := make(chan struct{}, 2)
	timer.ScheduleAfter(20*time.Millisecond, func() { fired <- struct{}{} })
	timer.ScheduleAfter(20*time.Millisecond, func() { fired <- struct{}{} })
	timer.Stop()

	select {
	case <-fired:
		t.Fatal("stopped timer still fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestSimpleTimerIDsAreUnique(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	id1, _ := timer.ScheduleAfter(time.Hour, func() {})
	id2, _ := timer.ScheduleAfter(time.Hour, func() {})
	if id1 == id2 {
		t.Errorf("timer IDs collide: %q", id1)
	}
}

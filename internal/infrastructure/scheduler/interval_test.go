package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	s := NewIntervalScheduler(10*time.Millisecond, time.UTC)

	var calls atomic.Int32
	if err := s.Start(context.Background(), func(time.Time) { calls.Add(1) }); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", calls.Load())
	}

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Fatalf("job ran after stop")
	}
}

func TestIntervalSchedulerReportsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	s := NewIntervalScheduler(time.Hour, loc)

	got := make(chan time.Time, 1)
	if err := s.Start(context.Background(), func(ts time.Time) { got <- ts }); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case ts := <-got:
		if ts.Location() != loc {
			t.Fatalf("expected trigger in %v, got %v", loc, ts.Location())
		}
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}

func TestStopWithoutStart(t *testing.T) {
	if err := NewIntervalScheduler(0, nil).Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

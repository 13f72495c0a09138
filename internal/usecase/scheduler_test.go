package usecase

import (
	"context"
	"testing"
	"time"

	"SOTAWatch/internal/logging"
)

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

type countingRunner struct{ days []time.Time }

func (r *countingRunner) Run(_ context.Context, day time.Time) (RunSummary, error) {
	r.days = append(r.days, day)
	return RunSummary{}, nil
}

func TestSchedulerRunsPipelineOnTick(t *testing.T) {
	driver := &manualDriver{}
	runner := &countingRunner{}
	s := NewScheduler(driver, runner, logging.Discard())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if driver.job == nil {
		t.Fatal("job not registered")
	}

	driver.job(runDay)
	driver.job(runDay.Add(24 * time.Hour))
	if len(runner.days) != 2 || !runner.days[1].Equal(runDay.Add(24*time.Hour)) {
		t.Fatalf("unexpected runs %v", runner.days)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !driver.stopped {
		t.Fatal("driver not stopped")
	}
}

package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"SOTAWatch/internal/ports"
)

// Interval spaces out calls so that consecutive Waits return at least
// interval apart. The first Wait returns immediately.
type Interval struct {
	limiter *rate.Limiter
}

var _ ports.Pacer = (*Interval)(nil)

// NewInterval builds a pacer; a non-positive interval disables pacing.
func NewInterval(interval time.Duration) *Interval {
	if interval <= 0 {
		return &Interval{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Interval{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Interval) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

package dispatch

import (
	"context"
	"time"
)

// Limiter paces consecutive send attempts within one dispatch.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NoLimit applies no pacing. Used for the bulk provider, which handles
// its own throughput server-side.
type NoLimit struct{}

func (NoLimit) Wait(ctx context.Context) error { return ctx.Err() }

// IntervalLimiter enforces a fixed delay between consecutive attempts.
// The first attempt passes immediately. The timer source is injectable
// so the pacing policy can be tested without wall-clock delays.
type IntervalLimiter struct {
	interval time.Duration
	after    func(time.Duration) <-chan time.Time
	started  bool
}

func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	return &IntervalLimiter{
		interval: interval,
		after:    time.After,
	}
}

func (l *IntervalLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.started {
		l.started = true
		return nil
	}
	select {
	case <-l.after(l.interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package scheduler provides the periodic-task plumbing shared by the
// engine components. Time-dependent components take a Clock so tests can
// advance virtual time instead of sleeping on real timers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Clock abstracts wall-clock reads for the circuit breaker, rate limiter and
// health monitor.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// FakeClock is a manually advanced clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock starting at the given instant.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Runner executes named periodic tasks until their context is cancelled.
type Runner struct {
	log zerolog.Logger
}

func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log}
}

// Periodic runs fn once immediately and then on every tick of interval. It
// blocks until ctx is done, so callers start it in its own goroutine.
func (r *Runner) Periodic(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	r.log.Info().Str("task", name).Dur("interval", interval).Msg("starting periodic task")
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Str("task", name).Msg("stopping periodic task")
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval.
type TickFunc func(ctx context.Context, firedAt time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	Name         string
	StartupDelay time.Duration
}

// Scheduler drives fixed-interval execution of a tick function. Ticks run
// synchronously: when a tick overruns its interval the missed firings are
// skipped rather than queued, so a job is never run concurrently with
// itself.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	builder := logger.With().Str("component", "scheduler")
	if opts.Name != "" {
		builder = builder.Str("loop", opts.Name)
	}
	return &Scheduler{opts: opts, logger: builder.Logger()}
}

// Run blocks, invoking the tick function on each interval until ctx is
// cancelled. A tick error is logged, never fatal: the loop continues.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := time.Now().UTC().Add(s.opts.Interval)
	for {
		delay := time.Until(next)
		if delay < 0 {
			// the previous tick overran; drop the missed firings
			next = time.Now().UTC().Add(s.opts.Interval)
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case firedAt := <-timer.C:
			timer.Stop()

			if err := tick(ctx, firedAt.UTC()); err != nil {
				s.logger.Error().Err(err).Msg("tick execution failed")
			}
		}

		next = next.Add(s.opts.Interval)
	}
}

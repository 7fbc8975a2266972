// Package scheduler triggers the daily review run at a fixed local time
// after the market close.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunFunc performs one scheduled review run for a compact YYYYMMDD date.
type RunFunc func(ctx context.Context, tradeDate string)

// Scheduler fires a run function once per day at a HH:MM local time.
type Scheduler struct {
	hour   int
	minute int
	run    RunFunc
	now    func() time.Time
	log    zerolog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// New builds a scheduler for a "HH:MM" local trigger time.
func New(at string, run RunFunc, opts ...Option) (*Scheduler, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule time %q: %w", at, err)
	}
	s := &Scheduler{
		hour:   t.Hour(),
		minute: t.Minute(),
		run:    run,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start blocks until the context is cancelled, firing the run function at
// each trigger. Call it from its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		next := s.nextRun(s.now())
		s.log.Info().Time("next_run", next).Msg("daily review scheduled")

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		tradeDate := s.now().Format("20060102")
		s.log.Info().Str("date", tradeDate).Msg("daily review trigger fired")
		s.run(ctx, tradeDate)
	}
}

// nextRun returns the next trigger after now: today's HH:MM if it is still
// ahead, otherwise tomorrow's.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Package credits resets every user's monthly credit balance on a cron
// schedule.
package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/siteanalyzer/backend/logging"
)

// DefaultSchedule runs at midnight on the first day of each month.
const DefaultSchedule = "0 0 1 * *"

const runTimeout = 5 * time.Minute

// Resetter restores balances and reports how many users it touched.
type Resetter interface {
	ResetCredits(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler runs a Resetter on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	resetter Resetter
	schedule string
	now      func() time.Time
	logger   logging.Logger
}

// NewScheduler validates schedule (standard five-field cron syntax; empty
// means DefaultSchedule) and registers the reset job. Call Start to run it.
func NewScheduler(resetter Resetter, schedule string) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		resetter: resetter,
		schedule: schedule,
		now:      time.Now,
		logger:   logging.Named("credits"),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid credit reset schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(context.Background(), "credit reset scheduled", logging.String("schedule", s.schedule))
}

// Stop halts the schedule and waits for a running reset to finish or ctx to
// end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns when the reset will next run, or the zero time if the
// scheduler is not started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow performs a reset immediately.
func (s *Scheduler) RunNow(ctx context.Context) (int64, error) {
	n, err := s.resetter.ResetCredits(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error(ctx, "credit reset failed", logging.Error(err))
		return 0, err
	}
	s.logger.Info(ctx, "credits reset", logging.Int64("users", n))
	return n, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	_, _ = s.RunNow(ctx)
}

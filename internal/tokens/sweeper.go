package tokens

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TobiSchelling/drivereport/internal/metrics"
)

// Sweeper removes expired datasets on a cron schedule.
type Sweeper struct {
	store   Store
	sched   cron.Schedule
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewSweeper parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func NewSweeper(store Store, schedule string, logger *log.Logger, m *metrics.Metrics) (*Sweeper, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(strings.TrimSpace(schedule))
	if err != nil {
		return nil, fmt.Errorf("parsing sweep schedule %q: %w", schedule, err)
	}
	if sched.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("sweep schedule %q never fires", schedule)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Sweeper{store: store, sched: sched, logger: logger, metrics: m, now: time.Now}, nil
}

// Next returns the next sweep time after t.
func (s *Sweeper) Next(t time.Time) time.Time {
	return s.sched.Next(t)
}

// Sweep removes every dataset expired now.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.Expire(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expiring datasets: %w", err)
	}
	s.metrics.DatasetsExpired(n)
	return n, nil
}

// Run sweeps on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		now := s.now()
		next := s.sched.Next(now)
		if next.IsZero() {
			s.logger.Printf("Sweep schedule has no future run, stopping")
			return
		}
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Printf("Sweep error: %v", err)
			continue
		}
		if n > 0 {
			s.logger.Printf("Swept %d expired dataset(s)", n)
		}
	}
}

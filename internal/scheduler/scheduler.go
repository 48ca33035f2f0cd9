// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/soaringjerry/maat/internal/logging"
	"github.com/soaringjerry/maat/internal/metrics"
)

// Pruner drops expired entries and reports how many went.
type Pruner interface {
	Prune(now time.Time) int
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{scheduler: s, logger: logger, metrics: m, now: time.Now}
}

// PruneEvery schedules p.Prune at interval.
func (s *Scheduler) PruneEvery(interval time.Duration, p Pruner) error {
	if interval <= 0 {
		return fmt.Errorf("prune interval must be positive, got %s", interval)
	}
	_, err := s.scheduler.Every(interval).Do(s.prune, p)
	return err
}

func (s *Scheduler) prune(p Pruner) {
	n := p.Prune(s.now())
	s.metrics.SessionsPruned(n)
	if n > 0 {
		s.logger.Info("expired run sessions pruned", "count", n)
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs is the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}

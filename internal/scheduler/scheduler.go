// Package scheduler runs periodic maintenance jobs: re-probing preferred RPC
// endpoints and refreshing cached wallet clusters.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Reprober moves the sticky RPC endpoint back to an earlier healthy one.
type Reprober interface {
	Reprobe(ctx context.Context) int
}

// Refresher recomputes derived data of one mint.
type Refresher interface {
	Refresh(ctx context.Context, mint string) error
}

// Scheduler wraps a gocron scheduler. Jobs never overlap with themselves.
type Scheduler struct {
	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	logger logrus.FieldLogger
}

// New creates a stopped scheduler.
func New(logger logrus.FieldLogger) (*Scheduler, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{sched: sched, ctx: ctx, cancel: cancel, logger: logger}, nil
}

// Every registers task to run every interval.
func (s *Scheduler) Every(name string, interval time.Duration, task func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			task(s.ctx)
			s.logger.WithFields(logrus.Fields{"job": name, "took": time.Since(start)}).Debug("job finished")
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	return nil
}

// AddReprobe re-probes endpoints every interval.
func (s *Scheduler) AddReprobe(interval time.Duration, r Reprober) error {
	return s.Every("reprobe-endpoints", interval, func(ctx context.Context) {
		idx := r.Reprobe(ctx)
		s.logger.WithField("endpoint", idx).Debug("endpoint re-probe done")
	})
}

// AddClusterRefresh refreshes every mint every interval. A failing mint does
// not stop the others.
func (s *Scheduler) AddClusterRefresh(interval time.Duration, mints []string, r Refresher) error {
	return s.Every("refresh-clusters", interval, func(ctx context.Context) {
		for _, mint := range mints {
			if err := r.Refresh(ctx, mint); err != nil {
				s.logger.WithError(err).WithField("mint", mint).Warn("cluster refresh failed")
			}
		}
	})
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and cancels running jobs.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

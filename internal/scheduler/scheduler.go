// Package scheduler runs the periodic background refresh of all saved
// place snapshots.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// RefreshFunc performs one batch refresh pass.
type RefreshFunc func(ctx context.Context)

// Scheduler drives a RefreshFunc on a fixed interval through gocron.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	refresh    RefreshFunc
	interval   time.Duration
	jobTimeout time.Duration
	logger     *zap.Logger
}

// New creates a Scheduler. An interval of zero disables scheduling
// entirely; Start becomes a no-op.
func New(interval, jobTimeout time.Duration, refresh RefreshFunc, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		refresh:    refresh,
		interval:   interval,
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("background refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.logger.Debug("running background refresh")
		started := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		s.refresh(ctx)

		s.logger.Debug("background refresh complete", zap.Duration("elapsed", time.Since(started)))
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("background refresh scheduled", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

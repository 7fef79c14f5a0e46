// Package scheduler runs the periodic maintenance passes: reservation
// expiry, counter reconciliation, cache expiry and stale order settlement.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/metrics"
)

// Task does one pass and reports how many items it touched.
type Task interface {
	Run(ctx context.Context) (int, error)
}

// TaskFunc adapts a method value such as ReservationService.SweepExpired.
type TaskFunc func(ctx context.Context) (int, error)

func (f TaskFunc) Run(ctx context.Context) (int, error) { return f(ctx) }

type Job struct {
	Name     string
	Interval time.Duration
	Task     Task
	// RunOnStart runs the task once before the first tick.
	RunOnStart bool
}

type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
}

func New(logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// Start runs every job on its own ticker and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Task == nil {
			s.logger.Warn("scheduler job disabled", "job", job.Name)
			continue
		}
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info("scheduler job started", "job", job.Name, "interval", job.Interval)
	if job.RunOnStart {
		s.tick(ctx, job)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, job)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job Job) {
	start := time.Now()
	n, err := job.Task.Run(ctx)
	metrics.TrackJob(job.Name, err)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduler job failed", "job", job.Name, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("scheduler job done", "job", job.Name, "items", n, "duration", time.Since(start))
	}
}

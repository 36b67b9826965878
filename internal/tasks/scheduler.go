// Package tasks runs background maintenance jobs on the chat history store.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/chatrelay/internal/database"
)

const maintenanceTimeout = 5 * time.Minute

// Scheduler manages periodic store maintenance using the gocron library.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	store     database.Store
	interval  time.Duration
}

// NewScheduler creates a scheduler that runs SQLite maintenance at the given
// interval. A zero interval disables the job.
func NewScheduler(logger *slog.Logger, store database.Store, interval time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		store:     store,
		interval:  interval,
	}, nil
}

// Start registers the maintenance job and begins the scheduler's ticking.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("Maintenance interval is zero, scheduler disabled")
		return nil
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.runMaintenance),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}

	s.scheduler.Start()
	s.logger.Info("Scheduler started", "maintenance_interval", s.interval)
	return nil
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("Running scheduled store maintenance")

	if err := s.store.RunMaintenance(ctx); err != nil {
		s.logger.Error("Scheduled maintenance failed", "error", err)
		return
	}

	s.logger.Info("Scheduled maintenance completed", "duration", time.Since(start))
}

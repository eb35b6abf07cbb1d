// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic housekeeping jobs: event-log retention
// and pruning of in-memory login and cache state.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// EventPruner deletes audit events older than a cutoff.
type EventPruner interface {
	DeleteEventsBefore(ctx context.Context, t time.Time) (int64, error)
}

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Schedule string // standard five-field cron expression
	Run      func(ctx context.Context) error
}

// Scheduler wraps a cron instance.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
	jobs    []string
}

// New creates a scheduler. Each job run gets a context bounded by timeout.
func New(logger *slog.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: timeout,
	}
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(job Job) error {
	_, err := s.cron.AddFunc(job.Schedule, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, job.Name)
	return nil
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("scheduled job failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Debug("scheduled job finished", "job", job.Name, "duration", time.Since(start))
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", s.jobs)
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// PruneEventsJob deletes events older than retention every hour.
// A non-positive retention keeps events forever and returns ok=false.
func PruneEventsJob(events EventPruner, retention time.Duration, now func() time.Time) (Job, bool) {
	if retention <= 0 {
		return Job{}, false
	}
	if now == nil {
		now = time.Now
	}
	return Job{
		Name:     "prune_events",
		Schedule: "@hourly",
		Run: func(ctx context.Context) error {
			n, err := events.DeleteEventsBefore(ctx, now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				slog.Info("pruned audit events", "category", "system", "deleted", n, "retention", retention)
			}
			return nil
		},
	}, true
}

// CleanupJob wraps a context-free cleanup function, such as expiring login
// lockouts, as a job running every five minutes.
func CleanupJob(name string, fn func()) Job {
	return Job{
		Name:     name,
		Schedule: "*/5 * * * *",
		Run: func(context.Context) error {
			fn()
			return nil
		},
	}
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the daily sync and housekeeping jobs on a cron
// evaluated in the business time zone.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/ocms-metricsync/internal/model"
	"github.com/olegiv/ocms-metricsync/internal/pipeline"
	"github.com/olegiv/ocms-metricsync/internal/store"
)

// Housekeeping schedule and deadline.
const (
	RetentionSchedule = "30 3 * * *"
	retentionTimeout  = 5 * time.Minute
)

// Runner executes one sync run.
type Runner interface {
	Run(ctx context.Context, trigger model.Trigger, date model.Date) (*pipeline.Result, error)
}

// Config holds the scheduling settings.
type Config struct {
	Schedule      string        // standard 5-field cron spec
	UTCOffset     int           // business zone offset in hours
	RunTimeout    time.Duration // outer deadline of a scheduled run
	RetentionDays int           // event log retention; 0 disables cleanup
}

// Scheduler handles the scheduled daily sync.
type Scheduler struct {
	cfg     Config
	cron    *cron.Cron
	runner  Runner
	queries *store.Queries
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a new scheduler instance. db may be nil, which disables the
// event log cleanup.
func New(cfg Config, runner Runner, db *sql.DB, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cfg:    cfg,
		cron:   cron.New(cron.WithLocation(model.BusinessZone(cfg.UTCOffset))),
		runner: runner,
		logger: logger,
		now:    time.Now,
	}
	if db != nil {
		s.queries = store.New(db)
	}
	return s
}

// addCronJob registers a cron job with timeout and error logging.
func (s *Scheduler) addCronJob(schedule string, timeout time.Duration, jobFunc func(context.Context) error, errMsg string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := jobFunc(ctx); err != nil {
			s.logger.Error(errMsg, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("adding job %q: %w", schedule, err)
	}
	return nil
}

// Start registers the jobs and starts the cron.
func (s *Scheduler) Start() error {
	if err := s.addCronJob(s.cfg.Schedule, s.cfg.RunTimeout, s.syncYesterday, "scheduled sync failed"); err != nil {
		return err
	}
	if s.queries != nil && s.cfg.RetentionDays > 0 {
		if err := s.addCronJob(RetentionSchedule, retentionTimeout, s.cleanupEvents, "event log cleanup failed"); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"jobs", len(s.cron.Entries()),
		"schedule", s.cfg.Schedule,
		"zone", model.BusinessZone(s.cfg.UTCOffset).String(),
		"next_run", s.NextRun())
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// NextRun returns when the daily sync fires next, or the zero time before Start.
func (s *Scheduler) NextRun() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// TargetDate is the date a scheduled run syncs: yesterday in the business zone.
func (s *Scheduler) TargetDate() model.Date {
	return model.BusinessYesterday(s.now(), time.Duration(s.cfg.UTCOffset)*time.Hour)
}

// RunOnce performs one run for date with the scheduled run's deadline.
func (s *Scheduler) RunOnce(ctx context.Context, trigger model.Trigger, date model.Date) (*pipeline.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()
	return s.runner.Run(ctx, trigger, date)
}

func (s *Scheduler) syncYesterday(ctx context.Context) error {
	date := s.TargetDate()
	s.logger.Info("scheduled sync starting", "date", date.String())
	_, err := s.runner.Run(ctx, model.TriggerScheduled, date)
	return err
}

func (s *Scheduler) cleanupEvents(ctx context.Context) error {
	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	n, err := s.queries.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("event log cleaned up", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return nil
}

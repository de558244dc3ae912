// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pipeline sequences one daily metrics sync: obtain a token, fetch
// reports, aggregate, upsert, notify.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-metricsync/internal/aggregate"
	"github.com/olegiv/ocms-metricsync/internal/analytics"
	"github.com/olegiv/ocms-metricsync/internal/gauth"
	"github.com/olegiv/ocms-metricsync/internal/model"
	"github.com/olegiv/ocms-metricsync/internal/notify"
)

// sideEffectTimeout bounds the notification, archive and ledger writes that
// still run after the run context has been cancelled.
const sideEffectTimeout = 30 * time.Second

// ReportFetcher fetches the raw reports for one day.
type ReportFetcher interface {
	Fetch(ctx context.Context, token string, d model.Date) (*analytics.Reports, error)
}

// Store upserts a day's metrics.
type Store interface {
	Upsert(ctx context.Context, d model.Date, m model.DailyMetrics) (model.UpsertResult, error)
}

// Notifier delivers a message on a best-effort basis.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// RunRecorder keeps the local run history.
type RunRecorder interface {
	StartRun(ctx context.Context, run model.Run) error
	FinishRun(ctx context.Context, run model.Run) error
}

// Archiver keeps a copy of each persisted record.
type Archiver interface {
	Archive(ctx context.Context, m model.DailyMetrics) error
}

// Deps are the collaborators of a Runner. Recorder and Archiver are optional.
type Deps struct {
	Tokens    gauth.TokenSource
	Reports   ReportFetcher
	Store     Store
	Notifier  Notifier
	Recorder  RunRecorder
	Archiver  Archiver
	Aggregate aggregate.Options
	Logger    *slog.Logger
	Now       func() time.Time
}

// Runner executes sync runs. A Runner holds no per-run state, so concurrent
// runs are independent.
type Runner struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Runner.
func New(deps Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{deps: deps, logger: logger, now: now}
}

// Result describes a finished run.
type Result struct {
	RunID    string
	Trigger  model.Trigger
	Date     model.Date
	Action   model.UpsertResult
	Metrics  model.DailyMetrics
	State    State
	FailedIn State
}

// execution carries the mutable state of one Run call.
type execution struct {
	r      *Runner
	res    *Result
	logger *slog.Logger
}

func (x *execution) enter(s State) {
	if !CanTransition(x.res.State, s) {
		x.logger.Error("illegal state transition", "from", x.res.State, "to", s)
	}
	x.res.State = s
	x.logger.Debug("run state", "state", s)
}

// Run syncs date. On failure the returned error is the first fatal error,
// the Result records the state in which it happened, and a failure
// notification has been attempted.
func (r *Runner) Run(ctx context.Context, trigger model.Trigger, date model.Date) (*Result, error) {
	res := &Result{
		RunID:   uuid.NewString(),
		Trigger: trigger,
		Date:    date,
		State:   StateIdle,
	}
	x := &execution{
		r:      r,
		res:    res,
		logger: r.logger.With("run_id", res.RunID, "date", date.String(), "trigger", string(trigger)),
	}

	started := r.now()
	r.recordStart(ctx, model.Run{
		ID:         res.RunID,
		Trigger:    trigger,
		TargetDate: date.String(),
		State:      string(StateIdle),
		StartedAt:  started,
	})
	x.logger.Info("sync run started")

	err := x.execute(ctx)
	if err != nil {
		res.FailedIn = res.State
		x.enter(StateFailed)
		x.logger.Error("sync run failed", "failed_in", res.FailedIn, "error", err)
		r.notify(ctx, notify.FailureMessage(date, err))
	} else {
		r.notify(ctx, notify.SuccessMessage(date, res.Action, res.Metrics))
		x.enter(StateDone)
		x.logger.Info("sync run completed", "action", res.Action, "visitors", res.Metrics.Visitors)
	}

	r.recordFinish(ctx, res, started, err)
	return res, err
}

func (x *execution) execute(ctx context.Context) error {
	r := x.r

	x.enter(StateAuthenticating)
	tok, err := r.deps.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	x.enter(StateFetching)
	reports, err := r.deps.Reports.Fetch(ctx, tok.Value, x.res.Date)
	if err != nil {
		return fmt.Errorf("fetching reports: %w", err)
	}

	x.enter(StateAggregating)
	x.res.Metrics = aggregate.Daily(x.res.Date, reports, r.deps.Aggregate)

	x.enter(StatePersisting)
	action, err := r.deps.Store.Upsert(ctx, x.res.Date, x.res.Metrics)
	if err != nil {
		return fmt.Errorf("persisting metrics: %w", err)
	}
	x.res.Action = action
	r.archive(ctx, x.logger, x.res.Metrics)

	x.enter(StateNotifying)
	return nil
}

// detached keeps the values of ctx but not its deadline or cancellation.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

func (r *Runner) notify(ctx context.Context, text string) {
	if r.deps.Notifier == nil {
		return
	}
	nctx, cancel := detached(ctx)
	defer cancel()
	r.deps.Notifier.Notify(nctx, text)
}

func (r *Runner) archive(ctx context.Context, logger *slog.Logger, m model.DailyMetrics) {
	if r.deps.Archiver == nil {
		return
	}
	actx, cancel := detached(ctx)
	defer cancel()
	if err := r.deps.Archiver.Archive(actx, m); err != nil {
		logger.Warn("snapshot archive failed", "error", err, "category", "store")
	}
}

func (r *Runner) recordStart(ctx context.Context, run model.Run) {
	if r.deps.Recorder == nil {
		return
	}
	rctx, cancel := detached(ctx)
	defer cancel()
	if err := r.deps.Recorder.StartRun(rctx, run); err != nil {
		r.logger.Warn("failed to record run start", "run_id", run.ID, "error", err, "category", "store")
	}
}

func (r *Runner) recordFinish(ctx context.Context, res *Result, started time.Time, runErr error) {
	if r.deps.Recorder == nil {
		return
	}
	finished := r.now()
	run := model.Run{
		ID:         res.RunID,
		Trigger:    res.Trigger,
		TargetDate: res.Date.String(),
		State:      string(res.State),
		Action:     res.Action,
		StartedAt:  started,
		FinishedAt: &finished,
	}
	if runErr != nil {
		run.Error = notify.Truncate(runErr.Error(), notify.MaxErrorRunes)
	}

	rctx, cancel := detached(ctx)
	defer cancel()
	if err := r.deps.Recorder.FinishRun(rctx, run); err != nil {
		r.logger.Warn("failed to record run finish", "run_id", run.ID, "error", err, "category", "store")
	}
}

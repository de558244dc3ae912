// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/ocms-metricsync/internal/model"
)

// Run is a row of the runs table.
type Run struct {
	ID         string
	Trigger    string
	TargetDate string
	State      string
	Action     string
	Error      string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// ToModel converts the row to its model form.
func (r Run) ToModel() model.Run {
	out := model.Run{
		ID:         r.ID,
		Trigger:    model.Trigger(r.Trigger),
		TargetDate: r.TargetDate,
		State:      r.State,
		Action:     model.UpsertResult(r.Action),
		Error:      r.Error,
		StartedAt:  r.StartedAt,
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		out.FinishedAt = &t
	}
	return out
}

const createRun = `
INSERT INTO runs (id, trigger, target_date, state, started_at)
VALUES (?, ?, ?, ?, ?)
`

// CreateRunParams are the columns set when a run starts.
type CreateRunParams struct {
	ID         string
	Trigger    string
	TargetDate string
	State      string
	StartedAt  time.Time
}

// CreateRun inserts a started run.
func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.Trigger,
		arg.TargetDate,
		arg.State,
		arg.StartedAt.UTC(),
	)
	return err
}

const finishRun = `
UPDATE runs SET state = ?, action = ?, error = ?, finished_at = ?
WHERE id = ?
`

// FinishRunParams are the columns set when a run ends.
type FinishRunParams struct {
	State      string
	Action     string
	Error      string
	FinishedAt time.Time
	ID         string
}

// FinishRun records the outcome of a run. It reports sql.ErrNoRows if the
// run was never created.
func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) error {
	res, err := q.db.ExecContext(ctx, finishRun,
		arg.State,
		arg.Action,
		arg.Error,
		arg.FinishedAt.UTC(),
		arg.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const runColumns = `id, trigger, target_date, state, action, error, started_at, finished_at`

const getRun = `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

// GetRun returns one run by id.
func (q *Queries) GetRun(ctx context.Context, id string) (Run, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var r Run
	err := row.Scan(
		&r.ID,
		&r.Trigger,
		&r.TargetDate,
		&r.State,
		&r.Action,
		&r.Error,
		&r.StartedAt,
		&r.FinishedAt,
	)
	return r, err
}

const listRecentRuns = `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`

// ListRecentRuns returns up to limit runs, newest first.
func (q *Queries) ListRecentRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRecentRuns, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID,
			&r.Trigger,
			&r.TargetDate,
			&r.State,
			&r.Action,
			&r.Error,
			&r.StartedAt,
			&r.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// RunLedger records pipeline runs in the runs table.
type RunLedger struct {
	queries *Queries
}

// NewRunLedger creates a RunLedger over db.
func NewRunLedger(db *sql.DB) *RunLedger {
	return &RunLedger{queries: New(db)}
}

// StartRun inserts run.
func (l *RunLedger) StartRun(ctx context.Context, run model.Run) error {
	err := l.queries.CreateRun(ctx, CreateRunParams{
		ID:         run.ID,
		Trigger:    string(run.Trigger),
		TargetDate: run.TargetDate,
		State:      run.State,
		StartedAt:  run.StartedAt,
	})
	if err != nil {
		return fmt.Errorf("creating run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the terminal state of run.
func (l *RunLedger) FinishRun(ctx context.Context, run model.Run) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	err := l.queries.FinishRun(ctx, FinishRunParams{
		State:      run.State,
		Action:     string(run.Action),
		Error:      run.Error,
		FinishedAt: finished,
		ID:         run.ID,
	})
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (l *RunLedger) Recent(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := l.queries.ListRecentRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	out := make([]model.Run, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToModel())
	}
	return out, nil
}

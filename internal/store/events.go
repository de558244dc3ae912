// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/ocms-metricsync/internal/model"
)

// Event is a row of the events table.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// ToModel converts the row to its model form.
func (e Event) ToModel() model.Event {
	return model.Event{
		ID:        e.ID,
		Level:     e.Level,
		Category:  e.Category,
		Message:   e.Message,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
}

const createEvent = `
INSERT INTO events (level, category, message, metadata, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, level, category, message, metadata, created_at
`

// CreateEventParams are the columns of a new event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent inserts an event.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	row := q.db.QueryRowContext(ctx, createEvent,
		arg.Level,
		arg.Category,
		arg.Message,
		arg.Metadata,
		arg.CreatedAt.UTC(),
	)
	var e Event
	err := row.Scan(
		&e.ID,
		&e.Level,
		&e.Category,
		&e.Message,
		&e.Metadata,
		&e.CreatedAt,
	)
	return e, err
}

const listEvents = `
SELECT id, level, category, message, metadata, created_at
FROM events
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// ListEvents returns up to limit events, newest first.
func (q *Queries) ListEvents(ctx context.Context, limit int64) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, listEvents, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.Level,
			&e.Category,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteEventsBefore = `DELETE FROM events WHERE created_at < ?`

// DeleteEventsBefore removes events older than cutoff and returns how many
// were deleted.
func (q *Queries) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEventsBefore, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

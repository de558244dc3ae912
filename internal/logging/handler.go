// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that mirrors warnings and errors
// into the local event log.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/ocms-metricsync/internal/model"
	"github.com/olegiv/ocms-metricsync/internal/store"
)

// CategoryKey is the attribute that sets an event's category explicitly.
const CategoryKey = "category"

const writeTimeout = 5 * time.Second

// EventLogHandler is a slog.Handler that wraps another handler and also
// writes records at or above its level to the events table.
type EventLogHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level
	attrs   []slog.Attr // attributes added through WithAttrs
	group   string
}

// NewEventLogHandler creates an EventLogHandler forwarding WARN and above.
func NewEventLogHandler(inner slog.Handler, db *sql.DB) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, db, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates an EventLogHandler with a custom
// minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, db *sql.DB, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner:   inner,
		queries: store.New(db),
		level:   level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level {
		h.writeToEventLog(ctx, r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.inner = h.inner.WithAttrs(attrs)
	for _, a := range attrs {
		c.attrs = append(c.attrs, h.qualify(a))
	}
	return c
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	c := h.clone()
	c.inner = h.inner.WithGroup(name)
	if name != "" {
		if c.group != "" {
			c.group += "." + name
		} else {
			c.group = name
		}
	}
	return c
}

func (h *EventLogHandler) clone() *EventLogHandler {
	return &EventLogHandler{
		inner:   h.inner,
		queries: h.queries,
		level:   h.level,
		attrs:   append([]slog.Attr(nil), h.attrs...),
		group:   h.group,
	}
}

func (h *EventLogHandler) qualify(a slog.Attr) slog.Attr {
	if h.group == "" {
		return a
	}
	return slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
}

// writeToEventLog stores r. The write outlives a cancelled request context;
// a failed write is dropped.
func (h *EventLogHandler) writeToEventLog(ctx context.Context, r slog.Record) {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify(a))
		return true
	})

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	_, _ = h.queries.CreateEvent(wctx, store.CreateEventParams{
		Level:     eventLevel(r.Level),
		Category:  category(r.Message, attrs),
		Message:   r.Message,
		Metadata:  metadata(attrs),
		CreatedAt: r.Time,
	})
}

// eventLevel converts a slog.Level to an event level.
func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// category returns the explicit category attribute, or infers one from msg.
func category(msg string, attrs []slog.Attr) string {
	for i := len(attrs) - 1; i >= 0; i-- {
		if attrs[i].Key == CategoryKey {
			if c := attrs[i].Value.String(); c != "" {
				return c
			}
		}
	}

	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "auth") || strings.Contains(m, "token") || strings.Contains(m, "secret"):
		return model.EventCategoryAuth
	case strings.Contains(m, "report") || strings.Contains(m, "analytics") || strings.Contains(m, "batch"):
		return model.EventCategoryAnalytics
	case strings.Contains(m, "notif") || strings.Contains(m, "telegram"):
		return model.EventCategoryNotify
	case strings.Contains(m, "store") || strings.Contains(m, "record") || strings.Contains(m, "upsert") ||
		strings.Contains(m, "database") || strings.Contains(m, "archive"):
		return model.EventCategoryStore
	case strings.Contains(m, "config") || strings.Contains(m, "setting"):
		return model.EventCategoryConfig
	default:
		return model.EventCategorySystem
	}
}

// metadata renders attrs (except the category) as a JSON object of strings.
func metadata(attrs []slog.Attr) string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a.Key == CategoryKey {
			continue
		}
		out[a.Key] = a.Value.Resolve().String()
	}
	if len(out) == 0 {
		return "{}"
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notify sends best-effort operational messages about sync runs.
package notify

import (
	"context"
	"errors"
	"html"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
)

// Sender delivers one message to a channel.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Notifier wraps a Sender and swallows its failures.
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

// New creates a Notifier. A nil sender logs messages instead of sending them.
func New(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	return &Notifier{sender: sender, logger: logger}
}

// Notify sends text. A delivery failure is logged and otherwise ignored.
func (n *Notifier) Notify(ctx context.Context, text string) {
	err := n.sender.Send(ctx, text)
	if err == nil {
		return
	}

	attrs := []any{"error", err, "category", "notify"}
	var ne *NotifyError
	if errors.As(err, &ne) && ne.StatusCode > 0 {
		attrs = append(attrs, "status_code", ne.StatusCode)
	}
	n.logger.Warn("notification delivery failed", attrs...)
}

// safeMarkup permits only the inline tags the messaging channel renders.
var safeMarkup = bluemonday.NewPolicy().
	AllowElements("b", "strong", "i", "em", "u", "s", "code", "pre")

// Escape makes s safe to interpolate into a message body.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Sanitize strips any markup outside the safe subset from a composed message.
func Sanitize(s string) string {
	return safeMarkup.Sanitize(s)
}

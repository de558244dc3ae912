// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP handlers of the manual trigger API.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/olegiv/ocms-metricsync/internal/model"
	"github.com/olegiv/ocms-metricsync/internal/pipeline"
)

// Runner performs one sync run under the configured run deadline.
type Runner interface {
	RunOnce(ctx context.Context, trigger model.Trigger, date model.Date) (*pipeline.Result, error)
}

// TriggerResponse is the body of a successful manual run.
type TriggerResponse struct {
	Success bool               `json:"success"`
	Date    string             `json:"date"`
	Action  model.UpsertResult `json:"action"`
	Data    model.Headline     `json:"data"`
}

// TriggerHandler handles manual sync requests.
type TriggerHandler struct {
	runner     Runner
	limiter    *rate.Limiter
	targetDate func() model.Date
	logger     *slog.Logger
}

// NewTriggerHandler creates a new trigger handler. targetDate supplies the
// date synced when the request names none. A nil limiter never throttles.
func NewTriggerHandler(runner Runner, limiter *rate.Limiter, targetDate func() model.Date, logger *slog.Logger) *TriggerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &TriggerHandler{
		runner:     runner,
		limiter:    limiter,
		targetDate: targetDate,
		logger:     logger,
	}
}

// Trigger handles GET and POST / requests.
func (h *TriggerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	date := h.targetDate()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := model.ParseDate(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		date = parsed
	}

	if !h.limiter.Allow() {
		h.logger.Warn("manual trigger rate limited", "date", date.String(), "category", "system")
		w.Header().Set("Retry-After", "10")
		writeJSONError(w, http.StatusTooManyRequests, "Too many sync requests, try again later")
		return
	}

	h.logger.Info("manual sync requested",
		"date", date.String(),
		"request_id", chimw.GetReqID(r.Context()))

	// A client disconnect must not cancel a run halfway; RunOnce applies
	// the only deadline.
	res, err := h.runner.RunOnce(context.WithoutCancel(r.Context()), model.TriggerManual, date)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TriggerResponse{
		Success: true,
		Date:    res.Date.String(),
		Action:  res.Action,
		Data:    res.Metrics.Headline(),
	})
}

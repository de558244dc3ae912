// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/olegiv/ocms-metricsync/internal/model"
)

// Run history page size limits.
const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 100
)

// RunLister returns the most recent runs, newest first.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]model.Run, error)
}

// RunsResponse is the body of GET /runs.
type RunsResponse struct {
	Success bool        `json:"success"`
	Runs    []model.Run `json:"runs"`
}

// RunsHandler serves the local run history.
type RunsHandler struct {
	runs   RunLister
	logger *slog.Logger
}

// NewRunsHandler creates a new run history handler.
func NewRunsHandler(runs RunLister, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{runs: runs, logger: logger}
}

// List handles GET /runs?limit=N requests.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxRunsLimit)
	}

	runs, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing runs failed", "error", err, "category", "store")
		writeJSONError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}

	writeJSON(w, http.StatusOK, RunsResponse{Success: true, Runs: runs})
}

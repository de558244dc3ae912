// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/ocms-metricsync/internal/version"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	info version.Info
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(info version.Info) *HealthHandler {
	return &HealthHandler{info: info}
}

// HealthStatus is the health response.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health handles GET /health requests. It never calls a downstream service.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:  "ok",
		Version: h.info.String(),
	})
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/olegiv/ocms-metricsync/internal/middleware"
)

// Routes.
const (
	RouteRoot   = "/"
	RouteHealth = "/health"
	RouteRuns   = "/runs"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsHeaders = []string{"Accept", "Content-Type", middleware.SecretHeader}
)

// RouterConfig configures the HTTP surface.
type RouterConfig struct {
	Secret         string
	AllowedOrigins []string
	RequestsPerMin int // per client IP; 0 disables
	IsDevelopment  bool
}

// NewRouter builds the router serving the manual trigger, the run history
// and the health check.
func NewRouter(cfg RouterConfig, trigger *TriggerHandler, runs *RunsHandler, health *HealthHandler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment)))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: corsMethods,
		AllowedHeaders: corsHeaders,
		MaxAge:         300,
	}))

	r.Get(RouteHealth, health.Health)
	r.Options(RouteRoot, preflight(cfg.AllowedOrigins))

	r.Group(func(r chi.Router) {
		if cfg.RequestsPerMin > 0 {
			r.Use(httprate.Limit(cfg.RequestsPerMin, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeJSONError(w, http.StatusTooManyRequests, "Too many requests")
				}),
			))
		}
		r.Use(middleware.RequireSecret(cfg.Secret, logger))

		r.Get(RouteRoot, trigger.Trigger)
		r.Post(RouteRoot, trigger.Trigger)
		r.Get(RouteRuns, runs.List)
	})

	return r
}

// preflight answers a bare OPTIONS request with permissive CORS headers and
// an empty body. Browser preflights are answered by the CORS middleware.
func preflight(origins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allow := ""
		switch origin := r.Header.Get("Origin"); {
		case len(origins) == 0 || slices.Contains(origins, "*"):
			allow = "*"
		case origin != "" && slices.Contains(origins, origin):
			allow = origin
			w.Header().Add("Vary", "Origin")
		}
		if allow != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", strings.Join(corsMethods, ", "))
			h.Set("Access-Control-Allow-Headers", strings.Join(corsHeaders, ", "))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

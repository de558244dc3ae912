// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for the manual trigger API.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// SecretHeader carries the shared secret of the manual trigger.
const SecretHeader = "X-Notify-Secret"

// WriteUnauthorized writes the 401 body of the trigger API.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}

// SecretMatches compares the presented secret with the expected one in
// constant time. An empty expected secret never matches.
func SecretMatches(presented, expected string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// RequireSecret rejects requests whose X-Notify-Secret header does not match
// secret. Rejected requests never reach next.
func RequireSecret(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !SecretMatches(r.Header.Get(SecretHeader), secret) {
				logger.Warn("manual trigger unauthorized",
					"remote_addr", r.RemoteAddr,
					"request_id", chimw.GetReqID(r.Context()),
					"category", "auth")
				WriteUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

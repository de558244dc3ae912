// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/olegiv/ocms-metricsync/internal/middleware"
	"github.com/olegiv/ocms-metricsync/internal/model"
	"github.com/olegiv/ocms-metricsync/internal/pipeline"
	"github.com/olegiv/ocms-metricsync/internal/testutil"
	"github.com/olegiv/ocms-metricsync/internal/version"
)

const testSecret = "trigger-secret-0123456789"

var yesterday = model.Date{Year: 2025, Month: time.March, Day: 14}

type fakeRunner struct {
	calls   atomic.Int32
	trigger model.Trigger
	date    model.Date
	action  model.UpsertResult
	err     error
}

func (f *fakeRunner) RunOnce(_ context.Context, trigger model.Trigger, date model.Date) (*pipeline.Result, error) {
	f.calls.Add(1)
	f.trigger = trigger
	f.date = date
	res := &pipeline.Result{
		Trigger: trigger,
		Date:    date,
		Action:  f.action,
		Metrics: model.DailyMetrics{
			Date:               date,
			Visitors:           120,
			Pageviews:          340,
			AvgDurationSeconds: 75,
			BounceRatePercent:  41.5,
			PhoneClick:         3,
			CTAClick:           7,
			FormSubmit:         2,
		},
	}
	if f.err != nil {
		res.State = pipeline.StateFailed
		return res, f.err
	}
	res.State = pipeline.StateDone
	return res, nil
}

type fakeRuns struct {
	limit int
	runs  []model.Run
	err   error
}

func (f *fakeRuns) Recent(_ context.Context, limit int) ([]model.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

type fixture struct {
	runner *fakeRunner
	runs   *fakeRuns
	router http.Handler
}

func newFixture(t *testing.T, limiter *rate.Limiter, perMin int) *fixture {
	t.Helper()
	f := &fixture{
		runner: &fakeRunner{action: model.UpsertCreated},
		runs:   &fakeRuns{},
	}
	logger := testutil.TestLoggerSilent()
	trigger := NewTriggerHandler(f.runner, limiter, func() model.Date { return yesterday }, logger)
	f.router = NewRouter(RouterConfig{
		Secret:         testSecret,
		AllowedOrigins: []string{"*"},
		RequestsPerMin: perMin,
	}, trigger, NewRunsHandler(f.runs, logger), NewHealthHandler(version.Info{Version: "v1.4.0"}), logger)
	return f
}

func (f *fixture) do(method, target string, secret bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if secret {
		req.Header.Set(middleware.SecretHeader, testSecret)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestTrigger_Unauthorized(t *testing.T) {
	f := newFixture(t, nil, 0)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method+" without secret", func(t *testing.T) {
			rr := f.do(method, "/?date=2025-01-01", false)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "Unauthorized", decode(t, rr)["error"])
		})
	}

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(middleware.SecretHeader, "not-the-secret")
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	assert.Zero(t, f.runner.calls.Load(), "unauthorized requests must not start a run")
}

func TestTrigger_Success(t *testing.T) {
	f := newFixture(t, nil, 0)

	rr := f.do(http.MethodPost, "/", true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp TriggerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "2025-03-14", resp.Date)
	assert.Equal(t, model.UpsertCreated, resp.Action)
	assert.Equal(t, model.Headline{
		Visitors:    120,
		Pageviews:   340,
		AvgDuration: 75,
		BounceRate:  41.5,
		PhoneClick:  3,
		CTAClick:    7,
		FormSubmit:  2,
	}, resp.Data)

	assert.Equal(t, int32(1), f.runner.calls.Load())
	assert.Equal(t, model.TriggerManual, f.runner.trigger)
	assert.Equal(t, yesterday, f.runner.date)
}

func TestTrigger_ResponseShape(t *testing.T) {
	f := newFixture(t, nil, 0)

	body := decode(t, f.do(http.MethodGet, "/?date=2025-02-01", true))
	assert.Equal(t, "2025-02-01", body["date"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "data must be an object")
	for _, key := range []string{"visitors", "pageviews", "avgDuration", "bounceRate", "phoneClick", "ctaClick", "formSubmit"} {
		assert.Contains(t, data, key)
	}
	assert.Len(t, data, 7)
}

func TestTrigger_ExplicitDate(t *testing.T) {
	f := newFixture(t, nil, 0)

	rr := f.do(http.MethodGet, "/?date=2024-12-31", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.Date{Year: 2024, Month: time.December, Day: 31}, f.runner.date)
}

func TestTrigger_InvalidDate(t *testing.T) {
	tests := []string{"yesterday", "2025-13-01", "2025-02-30", "20250101", "2025-1-1"}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			f := newFixture(t, nil, 0)
			rr := f.do(http.MethodPost, "/?date="+raw, true)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
			assert.Zero(t, f.runner.calls.Load())
		})
	}
}

func TestTrigger_Failure(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.runner.err = errors.New("fetching reports: batch 2 returned status 500")

	rr := f.do(http.MethodPost, "/", true)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "fetching reports: batch 2 returned status 500", body["error"])
}

func TestTrigger_RateLimited(t *testing.T) {
	f := newFixture(t, rate.NewLimiter(rate.Every(time.Hour), 1), 0)

	first := f.do(http.MethodPost, "/", true)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.do(http.MethodPost, "/", true)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, false, decode(t, second)["success"])
	assert.Equal(t, int32(1), f.runner.calls.Load())
}

func TestTrigger_UnauthorizedDoesNotConsumeLimiter(t *testing.T) {
	f := newFixture(t, rate.NewLimiter(rate.Every(time.Hour), 1), 0)

	for range 3 {
		assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/", false).Code)
	}
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/", true).Code)
}

func TestRouter_PerIPLimit(t *testing.T) {
	f := newFixture(t, nil, 2)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/", true).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/", true).Code)

	rr := f.do(http.MethodGet, "/", true)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, false, decode(t, rr)["success"])
}

func TestRouter_Options(t *testing.T) {
	f := newFixture(t, nil, 0)

	t.Run("bare options", func(t *testing.T) {
		rr := f.do(http.MethodOptions, "/", false)
		assert.Less(t, rr.Code, 300)
		assert.Empty(t, rr.Body.String())
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), middleware.SecretHeader)
	})

	t.Run("browser preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", middleware.SecretHeader)
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)

		assert.Less(t, rr.Code, 300)
		assert.Empty(t, rr.Body.String())
		assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	assert.Zero(t, f.runner.calls.Load())
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, 0)

	rr := f.do(http.MethodGet, "/health", false)
	require.Equal(t, http.StatusOK, rr.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, HealthStatus{Status: "ok", Version: "v1.4.0"}, status)
	assert.Zero(t, f.runner.calls.Load())
}

func TestRuns(t *testing.T) {
	started := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)

	t.Run("requires secret", func(t *testing.T) {
		f := newFixture(t, nil, 0)
		assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/runs", false).Code)
	})

	t.Run("default limit", func(t *testing.T) {
		f := newFixture(t, nil, 0)
		f.runs.runs = []model.Run{{ID: "r1", Trigger: model.TriggerScheduled, TargetDate: "2025-03-14", State: "done", StartedAt: started}}

		rr := f.do(http.MethodGet, "/runs", true)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, DefaultRunsLimit, f.runs.limit)

		var resp RunsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Runs, 1)
		assert.Equal(t, "r1", resp.Runs[0].ID)
	})

	t.Run("limit is capped", func(t *testing.T) {
		f := newFixture(t, nil, 0)
		require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/runs?limit=500", true).Code)
		assert.Equal(t, MaxRunsLimit, f.runs.limit)
	})

	t.Run("invalid limit", func(t *testing.T) {
		f := newFixture(t, nil, 0)
		for _, raw := range []string{"0", "-3", "ten"} {
			assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/runs?limit="+raw, true).Code, raw)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		f := newFixture(t, nil, 0)
		rr := f.do(http.MethodGet, "/runs", true)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true,"runs":[]}`, rr.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t, nil, 0)
		f.runs.err = errors.New("database is locked")
		assert.Equal(t, http.StatusInternalServerError, f.do(http.MethodGet, "/runs", true).Code)
	})
}

// disconnectRunner cancels the caller's request while the run is in flight
// and fails the run if that cancellation reaches it.
type disconnectRunner struct {
	disconnect context.CancelFunc
	requestID  string
}

func (d *disconnectRunner) RunOnce(ctx context.Context, trigger model.Trigger, date model.Date) (*pipeline.Result, error) {
	d.requestID = chimw.GetReqID(ctx)
	d.disconnect()

	select {
	case <-ctx.Done():
		return &pipeline.Result{Trigger: trigger, Date: date, State: pipeline.StateFailed}, fmt.Errorf("persisting metrics: %w", ctx.Err())
	case <-time.After(50 * time.Millisecond):
	}
	return &pipeline.Result{Trigger: trigger, Date: date, Action: model.UpsertCreated, State: pipeline.StateDone}, nil
}

func TestTrigger_ClientDisconnectDoesNotCancelRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &disconnectRunner{disconnect: cancel}
	logger := testutil.TestLoggerSilent()
	router := NewRouter(RouterConfig{Secret: testSecret, AllowedOrigins: []string{"*"}},
		NewTriggerHandler(runner, nil, func() model.Date { return yesterday }, logger),
		NewRunsHandler(&fakeRuns{}, logger), NewHealthHandler(version.Info{}), logger)

	req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx)
	req.Header.Set(middleware.SecretHeader, testSecret)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp TriggerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, model.UpsertCreated, resp.Action)
	assert.NotEmpty(t, runner.requestID, "request values must reach the run")
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/olegiv/ocms-metricsync/internal/aggregate"
	"github.com/olegiv/ocms-metricsync/internal/analytics"
	"github.com/olegiv/ocms-metricsync/internal/archive"
	"github.com/olegiv/ocms-metricsync/internal/config"
	"github.com/olegiv/ocms-metricsync/internal/gauth"
	"github.com/olegiv/ocms-metricsync/internal/handler"
	"github.com/olegiv/ocms-metricsync/internal/logging"
	"github.com/olegiv/ocms-metricsync/internal/model"
	"github.com/olegiv/ocms-metricsync/internal/notify"
	"github.com/olegiv/ocms-metricsync/internal/pipeline"
	"github.com/olegiv/ocms-metricsync/internal/scheduler"
	"github.com/olegiv/ocms-metricsync/internal/store"
	"github.com/olegiv/ocms-metricsync/internal/tablestore"
	"github.com/olegiv/ocms-metricsync/internal/version"
)

func run(opts options, info version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Mirror WARN and ERROR records into the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	ctx := context.Background()
	date := opts.date
	if date.IsZero() {
		date = model.BusinessYesterday(time.Now(), cfg.BusinessOffset())
	}

	client := newUpstreamClient()
	notifier := newNotifier(cfg, client, logger)
	runner, err := buildPipeline(ctx, cfg, db, client, notifier, date, logger)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Config{
		Schedule:      cfg.Schedule,
		UTCOffset:     cfg.BusinessUTCOffsetHours,
		RunTimeout:    cfg.RunTimeout,
		RetentionDays: cfg.EventRetentionDays,
	}, runner, db, logger)

	if opts.once {
		return runOnce(ctx, sched, date)
	}
	return serve(cfg, sched, db, info, logger)
}

// newUpstreamClient returns the client shared by every upstream API. It has
// no per-call timeout; the run deadline bounds each call.
func newUpstreamClient() *http.Client {
	return &http.Client{}
}

// newNotifier returns a Telegram notifier, or a log-only one when Telegram
// is not configured.
func newNotifier(cfg *config.Config, client *http.Client, logger *slog.Logger) *notify.Notifier {
	var sender notify.Sender
	if cfg.TelegramEnabled() {
		sender = notify.NewTelegramSender(cfg.TelegramBaseURL, cfg.TelegramBotToken, cfg.TelegramChatID, client)
	}
	return notify.New(sender, logger)
}

// buildPipeline wires the upstream clients into a pipeline runner. A
// credential that cannot be loaded is reported as a failed sync of date.
func buildPipeline(ctx context.Context, cfg *config.Config, db *sql.DB, client *http.Client,
	notifier pipeline.Notifier, date model.Date, logger *slog.Logger) (*pipeline.Runner, error) {
	tokens, err := gauth.NewTokenSource(gauth.Credential{
		Email:      cfg.GAClientEmail,
		PrivateKey: cfg.PrivateKeyPEM(),
	}, cfg.GATokenURL, cfg.GAScope, client)
	if err != nil {
		err = fmt.Errorf("loading service account: %w", err)
		logger.Error("sync cannot start", "date", date.String(), "error", err, "category", "auth")
		notifier.Notify(ctx, notify.FailureMessage(date, err))
		return nil, err
	}

	deps := pipeline.Deps{
		Tokens:  tokens,
		Reports: analytics.NewFetcher(cfg.GAReportBaseURL, cfg.GAPropertyID, client, logger),
		Store: tablestore.NewClient(tablestore.Config{
			BaseURL: cfg.StoreBaseURL,
			BaseID:  cfg.StoreBaseID,
			Table:   cfg.StoreTable,
			Token:   cfg.StoreAPIToken,
		}, client, logger),
		Notifier:  notifier,
		Recorder:  store.NewRunLedger(db),
		Aggregate: aggregate.Options{UnsetLabel: cfg.UnsetLabel},
		Logger:    logger,
	}

	if cfg.ArchiveEnabled() {
		a, err := archive.New(ctx, archive.Config{
			Bucket:    cfg.ArchiveBucket,
			Prefix:    cfg.ArchivePrefix,
			Region:    cfg.ArchiveRegion,
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing archive: %w", err)
		}
		deps.Archiver = a
		slog.Info("snapshot archive enabled", "bucket", cfg.ArchiveBucket)
	}

	return pipeline.New(deps), nil
}

// runOnce syncs one day and returns the run error, if any.
func runOnce(ctx context.Context, sched *scheduler.Scheduler, date model.Date) error {
	res, err := sched.RunOnce(ctx, model.TriggerCLI, date)
	if err != nil {
		return fmt.Errorf("sync %s: %w", date, err)
	}
	slog.Info("sync finished", "date", res.Date.String(), "action", res.Action, "run_id", res.RunID)
	return nil
}

// serve runs the scheduler and the trigger API until SIGINT or SIGTERM.
func serve(cfg *config.Config, sched *scheduler.Scheduler, db *sql.DB, info version.Info, logger *slog.Logger) error {
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	limiter := rate.NewLimiter(rate.Every(cfg.TriggerInterval), cfg.TriggerBurst)
	router := handler.NewRouter(handler.RouterConfig{
		Secret:         cfg.NotifySecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestsPerMin: cfg.HTTPRequestsPerMin,
		IsDevelopment:  cfg.IsDevelopment(),
	},
		handler.NewTriggerHandler(sched, limiter, sched.TargetDate, logger),
		handler.NewRunsHandler(store.NewRunLedger(db), logger),
		handler.NewHealthHandler(info),
		logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RunTimeout + 30*time.Second, // A manual run answers only when it finishes
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"

	"github.com/olegiv/ocms-metricsync/internal/model"
)

// knownWeakSecrets contains example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-notify-secret",
	"REPLACE_WITH_YOUR_OWN_SECRET",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"OCMS_DB_PATH" envDefault:"./data/metricsync.db"`
	ServerHost string `env:"OCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"OCMS_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"OCMS_ENV" envDefault:"development"`
	LogLevel   string `env:"OCMS_LOG_LEVEL" envDefault:"info"`

	// Analytics service account
	GAClientEmail   string `env:"OCMS_GA_CLIENT_EMAIL,required"`
	GAPrivateKey    string `env:"OCMS_GA_PRIVATE_KEY,required"` // PEM, newlines may be escaped as \n
	GAPropertyID    string `env:"OCMS_GA_PROPERTY_ID,required"`
	GATokenURL      string `env:"OCMS_GA_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	GAScope         string `env:"OCMS_GA_SCOPE" envDefault:"https://www.googleapis.com/auth/analytics.readonly"`
	GAReportBaseURL string `env:"OCMS_GA_REPORT_BASE_URL" envDefault:"https://analyticsdata.googleapis.com/v1beta"`

	// Table store
	StoreAPIToken string `env:"OCMS_STORE_API_TOKEN,required"`
	StoreBaseID   string `env:"OCMS_STORE_BASE_ID,required"`
	StoreBaseURL  string `env:"OCMS_STORE_BASE_URL" envDefault:"https://api.airtable.com/v0"`
	StoreTable    string `env:"OCMS_STORE_TABLE" envDefault:"DailyMetrics"`

	// Notifications; log-only when the bot token or chat id is empty
	TelegramBotToken string `env:"OCMS_TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"OCMS_TELEGRAM_CHAT_ID"`
	TelegramBaseURL  string `env:"OCMS_TELEGRAM_BASE_URL" envDefault:"https://api.telegram.org"`

	// Manual trigger
	NotifySecret       string        `env:"OCMS_NOTIFY_SECRET,required"`
	TriggerInterval    time.Duration `env:"OCMS_TRIGGER_INTERVAL" envDefault:"10s"` // Minimum spacing of manual runs
	TriggerBurst       int           `env:"OCMS_TRIGGER_BURST" envDefault:"1"`
	HTTPRequestsPerMin int           `env:"OCMS_HTTP_REQUESTS_PER_MIN" envDefault:"30"` // Per client IP
	CORSAllowedOrigins []string      `env:"OCMS_CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Scheduling
	BusinessUTCOffsetHours int           `env:"OCMS_BUSINESS_UTC_OFFSET_HOURS" envDefault:"9"`
	Schedule               string        `env:"OCMS_SCHEDULE" envDefault:"0 2 * * *"` // Evaluated in the business zone
	RunTimeout             time.Duration `env:"OCMS_RUN_TIMEOUT" envDefault:"10m"`
	UnsetLabel             string        `env:"OCMS_UNSET_LABEL" envDefault:"알 수 없음"`
	EventRetentionDays     int           `env:"OCMS_EVENT_RETENTION_DAYS" envDefault:"30"`

	// Snapshot archive; disabled when the bucket is empty
	ArchiveBucket    string `env:"OCMS_ARCHIVE_BUCKET"`
	ArchivePrefix    string `env:"OCMS_ARCHIVE_PREFIX" envDefault:"daily-metrics"`
	ArchiveRegion    string `env:"OCMS_ARCHIVE_REGION" envDefault:"us-east-1"`
	ArchiveEndpoint  string `env:"OCMS_ARCHIVE_ENDPOINT"`
	ArchiveAccessKey string `env:"OCMS_ARCHIVE_ACCESS_KEY"`
	ArchiveSecretKey string `env:"OCMS_ARCHIVE_SECRET_KEY"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// PrivateKeyPEM returns the service-account key with escaped newlines restored.
func (c Config) PrivateKeyPEM() []byte {
	return []byte(strings.ReplaceAll(c.GAPrivateKey, `\n`, "\n"))
}

// BusinessOffset returns the business zone's fixed UTC offset.
func (c Config) BusinessOffset() time.Duration {
	return time.Duration(c.BusinessUTCOffsetHours) * time.Hour
}

// BusinessZone returns the business zone as a fixed location.
func (c Config) BusinessZone() *time.Location {
	return model.BusinessZone(c.BusinessUTCOffsetHours)
}

// TelegramEnabled returns true if Telegram delivery is configured.
func (c Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// ArchiveEnabled returns true if snapshot archiving is configured.
func (c Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinNotifySecretLength is the minimum length of the manual trigger secret.
const MinNotifySecretLength = 16

// Offset bounds of real-world time zones.
const (
	MinUTCOffsetHours = -12
	MaxUTCOffsetHours = 14
)

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !hasMinimumEntropy(cfg.NotifySecret) {
		slog.Warn("OCMS_NOTIFY_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 24")
	}
	if !cfg.TelegramEnabled() {
		slog.Warn("telegram is not configured; notifications will only be logged")
	}

	return cfg, nil
}

// Validate checks values env.Parse cannot.
func (c *Config) Validate() error {
	var errs []error

	if len(c.NotifySecret) < MinNotifySecretLength {
		errs = append(errs, fmt.Errorf("OCMS_NOTIFY_SECRET must be at least %d bytes long, got %d bytes",
			MinNotifySecretLength, len(c.NotifySecret)))
	}
	for _, weak := range knownWeakSecrets {
		if c.NotifySecret == weak {
			errs = append(errs, errors.New("OCMS_NOTIFY_SECRET is a known example value and must not be used"))
		}
	}

	if c.BusinessUTCOffsetHours < MinUTCOffsetHours || c.BusinessUTCOffsetHours > MaxUTCOffsetHours {
		errs = append(errs, fmt.Errorf("OCMS_BUSINESS_UTC_OFFSET_HOURS must be within [%d, %d], got %d",
			MinUTCOffsetHours, MaxUTCOffsetHours, c.BusinessUTCOffsetHours))
	}

	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("OCMS_SCHEDULE %q is not a valid cron expression: %w", c.Schedule, err))
	}

	if c.RunTimeout <= 0 {
		errs = append(errs, errors.New("OCMS_RUN_TIMEOUT must be positive"))
	}
	if c.TriggerInterval <= 0 {
		errs = append(errs, errors.New("OCMS_TRIGGER_INTERVAL must be positive"))
	}
	if c.TriggerBurst < 1 {
		errs = append(errs, errors.New("OCMS_TRIGGER_BURST must be at least 1"))
	}
	if c.HTTPRequestsPerMin < 1 {
		errs = append(errs, errors.New("OCMS_HTTP_REQUESTS_PER_MIN must be at least 1"))
	}

	if !strings.Contains(string(c.PrivateKeyPEM()), "PRIVATE KEY") {
		errs = append(errs, errors.New("OCMS_GA_PRIVATE_KEY does not look like a PEM private key"))
	}

	return errors.Join(errs...)
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}

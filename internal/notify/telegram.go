// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Telegram delivery constants
const (
	DefaultTelegramBaseURL = "https://api.telegram.org"
	MaxResponseLen         = 10 * 1024 // Maximum response body kept in NotifyError
	UserAgent              = "ocms-metricsync/1.0"
)

// TelegramSender posts messages to one chat through the Bot API.
type TelegramSender struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
}

// NewTelegramSender creates a sender for chatID. An empty baseURL uses the
// public Bot API.
func NewTelegramSender(baseURL, token, chatID string, client *http.Client) *TelegramSender {
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TelegramSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		chatID:     chatID,
		httpClient: client,
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Send delivers text as HTML. Failures are returned as *NotifyError.
func (s *TelegramSender) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                s.chatID,
		Text:                  Sanitize(text),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return &NotifyError{Err: fmt.Errorf("encoding message: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &NotifyError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of the error text.
		return &NotifyError{Err: fmt.Errorf("request failed: %w", redactURLError(err))}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &NotifyError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// LogSender writes messages to the log instead of a channel. It is used when
// no messaging credentials are configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs text and never fails.
func (s *LogSender) Send(_ context.Context, text string) error {
	s.logger.Info("notification", "text", text)
	return nil
}

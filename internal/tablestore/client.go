// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tablestore upserts DailyMetrics into a remote Airtable-style table
// keyed by date.
//
// The upsert is a lookup followed by a create or a patch. Nothing on the
// remote side makes that pair atomic: two runs for the same date that both
// look up before either writes will both create, leaving a duplicate row.
package tablestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/olegiv/ocms-metricsync/internal/model"
)

const (
	// DefaultBaseURL is the Airtable REST root.
	DefaultBaseURL = "https://api.airtable.com/v0"
	// DefaultTable is the table holding one row per day.
	DefaultTable = "DailyMetrics"

	maxResponseLen  = 1024 * 1024
	maxErrorBodyLen = 2 * 1024
)

// Client talks to one table of one base.
type Client struct {
	baseURL    string
	baseID     string
	table      string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds the connection settings for a Client.
type Config struct {
	BaseURL string
	BaseID  string
	Table   string
	Token   string
}

// NewClient creates a Client. A nil http client uses http.DefaultClient.
func NewClient(cfg Config, client *http.Client, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		baseID:     cfg.BaseID,
		table:      cfg.Table,
		token:      cfg.Token,
		httpClient: client,
		logger:     logger,
	}
}

type record struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

type listResponse struct {
	Records []record `json:"records"`
}

// Upsert writes m under date: it patches the existing record for date if
// the lookup finds one and creates a new record otherwise.
func (c *Client) Upsert(ctx context.Context, date model.Date, m model.DailyMetrics) (model.UpsertResult, error) {
	fields, err := Fields(date, m)
	if err != nil {
		return "", &StoreError{Op: OpEncode, Err: err}
	}

	id, found, err := c.FindByDate(ctx, date)
	if err != nil {
		return "", err
	}

	if found {
		if err := c.patch(ctx, id, fields); err != nil {
			return "", err
		}
		c.logger.Info("daily metrics record updated", "date", date.String(), "record_id", id)
		return model.UpsertUpdated, nil
	}

	newID, err := c.create(ctx, fields)
	if err != nil {
		return "", err
	}
	c.logger.Info("daily metrics record created", "date", date.String(), "record_id", newID)
	return model.UpsertCreated, nil
}

// FindByDate looks up at most one record whose date column equals date.
func (c *Client) FindByDate(ctx context.Context, date model.Date) (string, bool, error) {
	q := url.Values{}
	q.Set("filterByFormula", DateFormula(date))
	q.Set("maxRecords", "1")

	var list listResponse
	if err := c.do(ctx, OpLookup, http.MethodGet, c.tableURL()+"?"+q.Encode(), nil, &list); err != nil {
		return "", false, err
	}
	if len(list.Records) == 0 || list.Records[0].ID == "" {
		return "", false, nil
	}
	return list.Records[0].ID, true, nil
}

// DateFormula is the equality filter for one date. Dates are always
// YYYY-MM-DD so no quoting beyond the single quotes is needed.
func DateFormula(date model.Date) string {
	return fmt.Sprintf("{%s}='%s'", FieldDate, date.String())
}

func (c *Client) create(ctx context.Context, fields map[string]any) (string, error) {
	var created record
	if err := c.do(ctx, OpCreate, http.MethodPost, c.tableURL(), record{Fields: fields}, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *Client) patch(ctx context.Context, id string, fields map[string]any) error {
	return c.do(ctx, OpUpdate, http.MethodPatch, c.tableURL()+"/"+url.PathEscape(id), record{Fields: fields}, nil)
}

func (c *Client) tableURL() string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(c.table))
}

// do sends one request and decodes a 2xx JSON body into out (if non-nil).
func (c *Client) do(ctx context.Context, op, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &StoreError{Op: op, Err: fmt.Errorf("encoding request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &StoreError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &StoreError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &StoreError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseLen)).Decode(out); err != nil {
		return &StoreError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

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
	// DefaultBaseURL is the GA4 Data API root.
	DefaultBaseURL = "https://analyticsdata.googleapis.com/v1beta"

	maxResponseLen  = 4 * 1024 * 1024 // Reports are small; anything bigger is a broken upstream
	maxErrorBodyLen = 2 * 1024
)

// Batch names, used in logs and errors.
const (
	BatchOverview = "overview"
	BatchDetail   = "detail"
)

// Reports holds every row set the aggregator needs for one day.
type Reports struct {
	Summary  []ReportRow
	Channels []ReportRow
	Devices  []ReportRow
	TopPages []ReportRow
	Regions  []ReportRow
	Events   []ReportRow
}

// Fetcher issues batchRunReports calls for one property.
type Fetcher struct {
	baseURL    string
	propertyID string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher. A nil client uses http.DefaultClient.
func NewFetcher(baseURL, propertyID string, client *http.Client, logger *slog.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		propertyID: propertyID,
		httpClient: client,
		logger:     logger,
	}
}

// OverviewBatch is the first batch: summary totals, channel and device breakdowns.
func OverviewBatch(d model.Date) []ReportRequest {
	return []ReportRequest{
		{
			DateRanges: singleDay(d),
			Metrics:    metrics(MetricTotalUsers, MetricPageViews, MetricAvgSessionDur, MetricBounceRate),
		},
		{
			DateRanges: singleDay(d),
			Dimensions: dims(DimChannelGroup),
			Metrics:    metrics(MetricSessions),
			OrderBys:   OrderByMetricDesc(MetricSessions),
		},
		{
			DateRanges: singleDay(d),
			Dimensions: dims(DimDevice),
			Metrics:    metrics(MetricSessions),
			OrderBys:   OrderByMetricDesc(MetricSessions),
		},
	}
}

// DetailBatch is the second batch: top pages, regions and named-event counts.
func DetailBatch(d model.Date) []ReportRequest {
	// The allow-list is the input, so this cannot fail.
	eventFilter, _ := EventNameFilter(model.AllowedEvents...)

	return []ReportRequest{
		{
			DateRanges: singleDay(d),
			Dimensions: dims(DimPagePath),
			Metrics:    metrics(MetricPageViews),
			OrderBys:   OrderByMetricDesc(MetricPageViews),
			Limit:      TopLimit,
		},
		{
			DateRanges: singleDay(d),
			Dimensions: dims(DimRegion),
			Metrics:    metrics(MetricActiveUsers),
			OrderBys:   OrderByMetricDesc(MetricActiveUsers),
			Limit:      TopLimit,
		},
		{
			DateRanges:      singleDay(d),
			Dimensions:      dims(DimEventName),
			Metrics:         metrics(MetricEventCount),
			DimensionFilter: eventFilter,
		},
	}
}

// Fetch runs both batches for d sequentially. Either batch failing aborts
// the fetch; no partial Reports are returned.
func (f *Fetcher) Fetch(ctx context.Context, token string, d model.Date) (*Reports, error) {
	overview, err := f.BatchRun(ctx, token, BatchOverview, OverviewBatch(d))
	if err != nil {
		return nil, err
	}
	detail, err := f.BatchRun(ctx, token, BatchDetail, DetailBatch(d))
	if err != nil {
		return nil, err
	}

	return &Reports{
		Summary:  overview[0],
		Channels: overview[1],
		Devices:  overview[2],
		TopPages: detail[0],
		Regions:  detail[1],
		Events:   detail[2],
	}, nil
}

// BatchRun POSTs one batch and returns the rows of each report in request
// order. A non-2xx status, an undecodable body or a report count that does
// not match the request count is an *UpstreamError.
func (f *Fetcher) BatchRun(ctx context.Context, token, batch string, reqs []ReportRequest) ([][]ReportRow, error) {
	payload, err := json.Marshal(struct {
		Requests []ReportRequest `json:"requests"`
	}{reqs})
	if err != nil {
		return nil, &UpstreamError{Batch: batch, Err: fmt.Errorf("encoding request: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/properties/%s:batchRunReports", f.baseURL, url.PathEscape(f.propertyID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &UpstreamError{Batch: batch, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	f.logger.Debug("running report batch", "batch", batch, "reports", len(reqs))

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Batch: batch, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return nil, &UpstreamError{
			Batch:      batch,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var br batchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseLen)).Decode(&br); err != nil {
		return nil, &UpstreamError{Batch: batch, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(br.Reports) != len(reqs) {
		return nil, &UpstreamError{
			Batch:      batch,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("got %d reports for %d requests", len(br.Reports), len(reqs)),
		}
	}

	out := make([][]ReportRow, len(br.Reports))
	for i, r := range br.Reports {
		out[i] = r.toRows()
	}
	f.logger.Debug("report batch complete", "batch", batch)
	return out, nil
}

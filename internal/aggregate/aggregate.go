// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package aggregate turns raw report rows into the canonical DailyMetrics
// record. Everything here is pure: no I/O, no clock.
package aggregate

import (
	"math"

	"github.com/olegiv/ocms-metricsync/internal/analytics"
	"github.com/olegiv/ocms-metricsync/internal/model"
)

// DefaultUnsetLabel replaces the upstream "(not set)" dimension value.
const DefaultUnsetLabel = "알 수 없음"

// Options tune the aggregation.
type Options struct {
	// UnsetLabel replaces missing or "(not set)" dimension values.
	UnsetLabel string
	// TopLimit caps the top-pages and regions breakdowns.
	TopLimit int
}

func (o Options) withDefaults() Options {
	if o.UnsetLabel == "" {
		o.UnsetLabel = DefaultUnsetLabel
	}
	if o.TopLimit <= 0 {
		o.TopLimit = analytics.TopLimit
	}
	return o
}

// Daily builds the DailyMetrics for date from r.
func Daily(date model.Date, r *analytics.Reports, opts Options) model.DailyMetrics {
	opts = opts.withDefaults()
	m := model.DailyMetrics{Date: date}
	if r == nil {
		r = &analytics.Reports{}
	}

	applySummary(&m, r.Summary)

	m.TrafficSources = Breakdowns(r.Channels, opts.UnsetLabel, 0)
	m.Devices = Breakdowns(r.Devices, opts.UnsetLabel, 0)
	m.TopPages = Breakdowns(r.TopPages, opts.UnsetLabel, opts.TopLimit)
	m.Regions = Breakdowns(r.Regions, opts.UnsetLabel, opts.TopLimit)

	events := EventCounts(r.Events, opts.UnsetLabel)
	m.PhoneClick = events[model.EventPhoneClick]
	m.CTAClick = events[model.EventCTAClick]
	m.FormSubmit = events[model.EventFormSubmit]

	return m
}

// applySummary maps the single summary row: total users, page views,
// average session duration (seconds) and bounce rate (a 0..1 fraction).
func applySummary(m *model.DailyMetrics, rows []analytics.ReportRow) {
	if len(rows) == 0 {
		return
	}
	row := rows[0]
	m.Visitors = toCount(analytics.MetricAt(row, 0))
	m.Pageviews = toCount(analytics.MetricAt(row, 1))
	m.AvgDurationSeconds = int64(math.Round(analytics.MetricAt(row, 2)))
	m.BounceRatePercent = RoundTenth(analytics.MetricAt(row, 3) * 100)
}

// Breakdowns converts single-dimension rows into entries carrying a percent
// of the group total. Rows keep upstream order; limit > 0 caps the count
// before the total is taken.
func Breakdowns(rows []analytics.ReportRow, unsetLabel string, limit int) []model.Breakdown {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]model.Breakdown, 0, len(rows))
	var total int64
	for _, row := range rows {
		b := model.Breakdown{
			Name:  analytics.DimensionAt(row, 0, unsetLabel),
			Count: toCount(analytics.MetricAt(row, 0)),
		}
		total += b.Count
		out = append(out, b)
	}

	for i := range out {
		out[i].Percent = Percent(out[i].Count, total)
	}
	return out
}

// EventCounts maps event name to count. Reading a name that is absent gives 0.
func EventCounts(rows []analytics.ReportRow, unsetLabel string) map[string]int64 {
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[analytics.DimensionAt(row, 0, unsetLabel)] += toCount(analytics.MetricAt(row, 0))
	}
	return counts
}

// Percent is count/total as a percentage with one decimal, or 0 when total is 0.
func Percent(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

// RoundTenth rounds v to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func toCount(v float64) int64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}

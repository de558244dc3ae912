// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package analytics fetches batched daily reports from the GA4 Data API.
package analytics

import (
	"fmt"

	"github.com/olegiv/ocms-metricsync/internal/model"
)

// ReportRequest is one independent report inside a batch call.
type ReportRequest struct {
	DateRanges      []DateRange      `json:"dateRanges"`
	Dimensions      []Dimension      `json:"dimensions,omitempty"`
	Metrics         []Metric         `json:"metrics"`
	DimensionFilter *DimensionFilter `json:"dimensionFilter,omitempty"`
	OrderBys        []OrderBy        `json:"orderBys,omitempty"`
	Limit           int64            `json:"limit,omitempty,string"`
}

// DateRange is an inclusive day range.
type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Dimension names a categorical breakdown key.
type Dimension struct {
	Name string `json:"name"`
}

// Metric names a numeric measure.
type Metric struct {
	Name string `json:"name"`
}

// DimensionFilter restricts rows to a set of dimension values.
type DimensionFilter struct {
	Filter FieldFilter `json:"filter"`
}

// FieldFilter is a single-field filter expression.
type FieldFilter struct {
	FieldName    string        `json:"fieldName"`
	InListFilter *InListFilter `json:"inListFilter,omitempty"`
}

// InListFilter matches any of Values.
type InListFilter struct {
	Values []string `json:"values"`
}

// OrderBy sorts rows by a metric.
type OrderBy struct {
	Metric *MetricOrderBy `json:"metric,omitempty"`
	Desc   bool           `json:"desc,omitempty"`
}

// MetricOrderBy names the metric to sort on.
type MetricOrderBy struct {
	MetricName string `json:"metricName"`
}

// EventNameFilter builds an eventName in-list filter. Only names on the
// event allow-list are accepted.
func EventNameFilter(names ...string) (*DimensionFilter, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("event filter needs at least one event name")
	}
	for _, n := range names {
		if !model.IsAllowedEvent(n) {
			return nil, fmt.Errorf("event %q is not on the allow-list", n)
		}
	}
	values := make([]string, len(names))
	copy(values, names)
	return &DimensionFilter{Filter: FieldFilter{
		FieldName:    DimEventName,
		InListFilter: &InListFilter{Values: values},
	}}, nil
}

// OrderByMetricDesc sorts by metric, largest first.
func OrderByMetricDesc(metric string) []OrderBy {
	return []OrderBy{{Metric: &MetricOrderBy{MetricName: metric}, Desc: true}}
}

func dims(names ...string) []Dimension {
	out := make([]Dimension, len(names))
	for i, n := range names {
		out[i] = Dimension{Name: n}
	}
	return out
}

func metrics(names ...string) []Metric {
	out := make([]Metric, len(names))
	for i, n := range names {
		out[i] = Metric{Name: n}
	}
	return out
}

func singleDay(d model.Date) []DateRange {
	s := d.String()
	return []DateRange{{StartDate: s, EndDate: s}}
}

// GA4 API names used by the daily reports.
const (
	DimChannelGroup = "sessionDefaultChannelGroup"
	DimDevice       = "deviceCategory"
	DimPagePath     = "pagePath"
	DimRegion       = "region"
	DimEventName    = "eventName"

	MetricTotalUsers    = "totalUsers"
	MetricActiveUsers   = "activeUsers"
	MetricPageViews     = "screenPageViews"
	MetricAvgSessionDur = "averageSessionDuration"
	MetricBounceRate    = "bounceRate"
	MetricSessions      = "sessions"
	MetricEventCount    = "eventCount"
)

// TopLimit caps the top-pages and regions reports.
const TopLimit = 10

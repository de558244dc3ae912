// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"math"
	"strconv"
	"strings"
)

// UnsetValue is the sentinel the upstream puts in a dimension it could not resolve.
const UnsetValue = "(not set)"

// ReportRow is one row of a report: ordered dimension values, then ordered metric values.
type ReportRow struct {
	Dimensions []string
	Metrics    []float64
}

// MetricAt returns the i-th metric of row, or 0 when the row has no such metric.
func MetricAt(row ReportRow, i int) float64 {
	if i < 0 || i >= len(row.Metrics) {
		return 0
	}
	return row.Metrics[i]
}

// DimensionAt returns the i-th dimension of row. A missing, empty or
// "(not set)" value is replaced by fallback; the sentinel never leaks out.
func DimensionAt(row ReportRow, i int, fallback string) string {
	if i < 0 || i >= len(row.Dimensions) {
		return fallback
	}
	v := strings.TrimSpace(row.Dimensions[i])
	if v == "" || v == UnsetValue {
		return fallback
	}
	return v
}

// parseMetric converts an upstream metric string; anything unparsable is 0.
func parseMetric(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// wire shapes of a batchRunReports response
type batchResponse struct {
	Reports []reportResponse `json:"reports"`
}

type reportResponse struct {
	Rows     []rowResponse `json:"rows"`
	RowCount int64         `json:"rowCount"`
}

type rowResponse struct {
	DimensionValues []valueResponse `json:"dimensionValues"`
	MetricValues    []valueResponse `json:"metricValues"`
}

type valueResponse struct {
	Value string `json:"value"`
}

func (r reportResponse) toRows() []ReportRow {
	rows := make([]ReportRow, 0, len(r.Rows))
	for _, raw := range r.Rows {
		row := ReportRow{
			Dimensions: make([]string, len(raw.DimensionValues)),
			Metrics:    make([]float64, len(raw.MetricValues)),
		}
		for i, d := range raw.DimensionValues {
			row.Dimensions[i] = d.Value
		}
		for i, m := range raw.MetricValues {
			row.Metrics[i] = parseMetric(m.Value)
		}
		rows = append(rows, row)
	}
	return rows
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tablestore

import (
	"encoding/json"
	"fmt"

	"github.com/olegiv/ocms-metricsync/internal/model"
)

// Column names of the daily metrics table.
const (
	FieldDate           = "date"
	FieldVisitors       = "visitors"
	FieldPageviews      = "pageviews"
	FieldAvgDuration    = "avgDuration"
	FieldBounceRate     = "bounceRate"
	FieldPhoneClick     = "phoneClick"
	FieldCTAClick       = "ctaClick"
	FieldFormSubmit     = "formSubmit"
	FieldTrafficSources = "trafficSources"
	FieldTopPages       = "topPages"
	FieldDevices        = "devices"
	FieldRegions        = "regions"
)

// Fields flattens m into the table's scalar columns. Breakdown lists are
// stored as JSON strings. Every metrics column is always present so a patch
// fully replaces the previous values.
func Fields(date model.Date, m model.DailyMetrics) (map[string]any, error) {
	fields := map[string]any{
		FieldDate:        date.String(),
		FieldVisitors:    m.Visitors,
		FieldPageviews:   m.Pageviews,
		FieldAvgDuration: m.AvgDurationSeconds,
		FieldBounceRate:  m.BounceRatePercent,
		FieldPhoneClick:  m.PhoneClick,
		FieldCTAClick:    m.CTAClick,
		FieldFormSubmit:  m.FormSubmit,
	}

	lists := []struct {
		name  string
		value []model.Breakdown
	}{
		{FieldTrafficSources, m.TrafficSources},
		{FieldTopPages, m.TopPages},
		{FieldDevices, m.Devices},
		{FieldRegions, m.Regions},
	}
	for _, l := range lists {
		s, err := encodeBreakdowns(l.value)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", l.name, err)
		}
		fields[l.name] = s
	}
	return fields, nil
}

func encodeBreakdowns(bs []model.Breakdown) (string, error) {
	if bs == nil {
		bs = []model.Breakdown{}
	}
	b, err := json.Marshal(bs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

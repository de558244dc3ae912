// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain types shared across the metrics sync pipeline.
package model

// Named events counted into DailyMetrics. These are also the only event
// names a report request may filter on.
const (
	EventPhoneClick = "phone_click"
	EventCTAClick   = "cta_click"
	EventFormSubmit = "form_submit"
)

// AllowedEvents is the event-name allow-list, in report order.
var AllowedEvents = []string{EventPhoneClick, EventCTAClick, EventFormSubmit}

// IsAllowedEvent reports whether name is on the event allow-list.
func IsAllowedEvent(name string) bool {
	for _, e := range AllowedEvents {
		if e == name {
			return true
		}
	}
	return false
}

// Breakdown is one entry of a grouped breakdown (traffic source, page, device, region).
type Breakdown struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// DailyMetrics is the canonical per-day record. Date is unique across the store.
type DailyMetrics struct {
	Date               Date        `json:"date"`
	Visitors           int64       `json:"visitors"`
	Pageviews          int64       `json:"pageviews"`
	AvgDurationSeconds int64       `json:"avgDuration"`
	BounceRatePercent  float64     `json:"bounceRate"`
	PhoneClick         int64       `json:"phoneClick"`
	CTAClick           int64       `json:"ctaClick"`
	FormSubmit         int64       `json:"formSubmit"`
	TrafficSources     []Breakdown `json:"trafficSources"`
	TopPages           []Breakdown `json:"topPages"`
	Devices            []Breakdown `json:"devices"`
	Regions            []Breakdown `json:"regions"`
}

// Headline is the compact summary returned by the manual trigger and sent
// in success notifications.
type Headline struct {
	Visitors    int64   `json:"visitors"`
	Pageviews   int64   `json:"pageviews"`
	AvgDuration int64   `json:"avgDuration"`
	BounceRate  float64 `json:"bounceRate"`
	PhoneClick  int64   `json:"phoneClick"`
	CTAClick    int64   `json:"ctaClick"`
	FormSubmit  int64   `json:"formSubmit"`
}

// Headline extracts the headline numbers.
func (m DailyMetrics) Headline() Headline {
	return Headline{
		Visitors:    m.Visitors,
		Pageviews:   m.Pageviews,
		AvgDuration: m.AvgDurationSeconds,
		BounceRate:  m.BounceRatePercent,
		PhoneClick:  m.PhoneClick,
		CTAClick:    m.CTAClick,
		FormSubmit:  m.FormSubmit,
	}
}

// UpsertResult tells whether an upsert created a new record or patched an existing one.
type UpsertResult string

// Upsert outcomes.
const (
	UpsertCreated UpsertResult = "created"
	UpsertUpdated UpsertResult = "updated"
)

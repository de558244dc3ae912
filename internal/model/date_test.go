// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"2025-01-10", Date{2025, time.January, 10}, false},
		{"2024-02-29", Date{2024, time.February, 29}, false},
		{"2025-02-29", Date{}, true},
		{"2025-13-01", Date{}, true},
		{"2025-1-10", Date{}, true},
		{"20250110", Date{}, true},
		{"", Date{}, true},
		{"2025-01-10T00:00:00Z", Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDate_StringRoundTrip(t *testing.T) {
	d := Date{2025, time.March, 7}
	if d.String() != "2025-03-07" {
		t.Fatalf("String() = %q, want %q", d.String(), "2025-03-07")
	}
	parsed, err := ParseDate(d.String())
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if parsed != d {
		t.Errorf("round trip = %v, want %v", parsed, d)
	}
}

func TestDate_AddDays(t *testing.T) {
	tests := []struct {
		name string
		d    Date
		n    int
		want string
	}{
		{"month boundary", Date{2025, time.March, 1}, -1, "2025-02-28"},
		{"leap day", Date{2024, time.March, 1}, -1, "2024-02-29"},
		{"year boundary", Date{2025, time.January, 1}, -1, "2024-12-31"},
		{"forward", Date{2025, time.December, 31}, 1, "2026-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.AddDays(tt.n).String(); got != tt.want {
				t.Errorf("AddDays(%d) = %s, want %s", tt.n, got, tt.want)
			}
		})
	}
}

func TestDate_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
	}{Date{2025, time.January, 10}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"d":"2025-01-10"}` {
		t.Errorf("Marshal = %s", b)
	}

	var out struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2025-02-30"}`), &out); err == nil {
		t.Error("Unmarshal accepted an impossible date")
	}
}

func TestBusinessYesterday(t *testing.T) {
	const kst = 9 * time.Hour

	tests := []struct {
		name   string
		now    time.Time
		offset time.Duration
		want   string
	}{
		{
			// 16:00Z is already 01:00 on the 11th in UTC+9, so yesterday is the 10th.
			// Truncating to the UTC day first would give the 9th.
			name:   "after local midnight before UTC midnight",
			now:    time.Date(2025, 1, 10, 16, 0, 0, 0, time.UTC),
			offset: kst,
			want:   "2025-01-10",
		},
		{
			name:   "before local midnight",
			now:    time.Date(2025, 1, 10, 14, 59, 59, 0, time.UTC),
			offset: kst,
			want:   "2025-01-09",
		},
		{
			name:   "exactly local midnight",
			now:    time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC),
			offset: kst,
			want:   "2025-01-10",
		},
		{
			name:   "input in a foreign zone",
			now:    time.Date(2025, 1, 10, 11, 0, 0, 0, time.FixedZone("EST", -5*3600)),
			offset: kst,
			want:   "2025-01-10",
		},
		{
			name:   "new year rollover",
			now:    time.Date(2024, 12, 31, 15, 30, 0, 0, time.UTC),
			offset: kst,
			want:   "2024-12-31",
		},
		{
			name:   "negative offset",
			now:    time.Date(2025, 1, 10, 3, 0, 0, 0, time.UTC),
			offset: -5 * time.Hour,
			want:   "2025-01-08",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BusinessYesterday(tt.now, tt.offset).String(); got != tt.want {
				t.Errorf("BusinessYesterday(%s) = %s, want %s", tt.now.Format(time.RFC3339), got, tt.want)
			}
		})
	}
}

func TestBusinessZone(t *testing.T) {
	loc := BusinessZone(9)
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	if offset != 9*3600 {
		t.Errorf("offset = %d, want %d", offset, 9*3600)
	}
	if loc.String() != "UTC+9" {
		t.Errorf("name = %q, want %q", loc.String(), "UTC+9")
	}
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date layout used on every wire boundary.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day shown on t's wall clock in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string. Out-of-range days such as
// 2025-02-30 are rejected rather than normalized.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// BusinessZone returns a fixed zone for a whole-hour UTC offset.
func BusinessZone(offsetHours int) *time.Location {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return time.FixedZone(name, offsetHours*3600)
}

// BusinessYesterday returns the day before "today" as seen in a fixed
// UTC+offset business zone. The instant is shifted by the offset first and
// only then truncated to a calendar day; truncating in UTC and shifting
// afterwards yields the wrong day for the hours between local midnight and
// UTC midnight.
func BusinessYesterday(now time.Time, offset time.Duration) Date {
	shifted := now.UTC().Add(offset)
	return DateOf(shifted).AddDays(-1)
}

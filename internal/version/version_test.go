// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package version

import "testing"

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"zero value", Info{}, "dev"},
		{"tagged build", Info{Version: "v1.2.3"}, "v1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfoLong(t *testing.T) {
	info := Info{
		Version:   "v1.0.0",
		GitCommit: "abc1234",
		BuildTime: "2025-01-30T12:00:00Z",
	}
	want := "metricsync v1.0.0 (commit abc1234, built 2025-01-30T12:00:00Z)"
	if got := info.Long("metricsync"); got != want {
		t.Errorf("Long() = %q, want %q", got, want)
	}

	var zero Info
	want = "metricsync dev (commit unknown, built unknown)"
	if got := zero.Long("metricsync"); got != want {
		t.Errorf("zero Long() = %q, want %q", got, want)
	}
}

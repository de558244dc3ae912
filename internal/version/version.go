// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

import "fmt"

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string // Short git commit hash (e.g., "abc1234")
	BuildTime string // Build timestamp in RFC3339 format
}

// String returns the version, or "dev" for builds without ldflags.
func (i Info) String() string {
	if i.Version == "" {
		return "dev"
	}
	return i.Version
}

// Long returns the version line printed by --version.
func (i Info) Long(name string) string {
	commit, built := i.GitCommit, i.BuildTime
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("%s %s (commit %s, built %s)", name, i.String(), commit, built)
}

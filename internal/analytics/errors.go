// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import "fmt"

// UpstreamError reports a failed batch call. StatusCode is 0 when the
// request never got a response.
type UpstreamError struct {
	Batch      string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analytics: %s batch failed: %v", e.Batch, e.Err)
	}
	return fmt.Sprintf("analytics: %s batch failed (%d): %s", e.Batch, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tablestore

import "fmt"

// Store operations, reported in StoreError.Op.
const (
	OpEncode = "encode"
	OpLookup = "lookup"
	OpCreate = "create"
	OpUpdate = "update"
)

// StoreError reports a failed lookup or write. StatusCode and Body are set
// when the store answered with a non-2xx status.
type StoreError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s failed (%d): %s", e.Op, e.StatusCode, e.Body)
}

func (e *StoreError) Unwrap() error { return e.Err }

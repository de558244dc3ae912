// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"errors"
	"fmt"
	"net/url"
)

// NotifyError reports a failed delivery. It is logged by Notifier and never
// returned to the pipeline.
type NotifyError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *NotifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notify: %v", e.Err)
	}
	return fmt.Sprintf("notify: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// redactURLError drops the request URL from a transport error.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

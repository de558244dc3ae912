// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package gauth

import "fmt"

// CryptoError reports a private key that cannot be parsed or an assertion
// that cannot be signed. It is never retried.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// AuthError reports a rejected token exchange. Code and Description carry
// the OAuth2 "error" and "error_description" fields when the endpoint sent them.
type AuthError struct {
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("auth: token exchange failed: %v", e.Err)
	case e.Description != "":
		return fmt.Sprintf("auth: token exchange rejected (%d): %s: %s", e.StatusCode, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("auth: token exchange rejected (%d): %s", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("auth: token exchange rejected (%d)", e.StatusCode)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

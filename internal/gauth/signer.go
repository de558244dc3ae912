// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package gauth implements the service-account OAuth2 flow used to call the
// metrics API: an RS256-signed JWT assertion exchanged for a bearer token.
package gauth

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Defaults for the Google service-account flow.
const (
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	DefaultScope    = "https://www.googleapis.com/auth/analytics.readonly"

	// AssertionTTL is the fixed lifetime of a signed assertion.
	AssertionTTL = 3600 * time.Second
)

// Credential is a service-account identity. It is loaded once and never mutated.
type Credential struct {
	Email      string
	PrivateKey []byte // PEM, PKCS8 (PKCS1 is accepted too)
}

// Signer builds RS256 JWT assertions for one credential.
type Signer struct {
	email    string
	key      *rsa.PrivateKey
	scope    string
	audience string
	now      func() time.Time
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithScope overrides the requested OAuth2 scope.
func WithScope(scope string) SignerOption {
	return func(s *Signer) { s.scope = scope }
}

// WithAudience overrides the assertion audience (the token endpoint URL).
func WithAudience(aud string) SignerOption {
	return func(s *Signer) { s.audience = aud }
}

// WithClock injects the time source used for iat/exp.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// NewSigner parses the credential's PEM key. A key that is not valid PEM or
// not an RSA key yields a *CryptoError.
func NewSigner(cred Credential, opts ...SignerOption) (*Signer, error) {
	if cred.Email == "" {
		return nil, &CryptoError{Op: "load credential", Err: errors.New("service account email is empty")}
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(cred.PrivateKey)
	if err != nil {
		return nil, &CryptoError{Op: "parse private key", Err: err}
	}

	s := &Signer{
		email:    cred.Email,
		key:      key,
		scope:    DefaultScope,
		audience: DefaultTokenURL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign returns a compact base64url header.claims.signature assertion that
// expires exactly AssertionTTL after it was issued.
func (s *Signer) Sign() (string, error) {
	iat := s.now().Unix()
	claims := jwt.MapClaims{
		"iss":   s.email,
		"scope": s.scope,
		"aud":   s.audience,
		"iat":   iat,
		"exp":   iat + int64(AssertionTTL/time.Second),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", &CryptoError{Op: "sign assertion", Err: err}
	}
	return signed, nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package gauth

import (
	"context"
	"net/http"
)

// TokenSource yields a fresh access token. Implementations must not cache:
// every pipeline run derives its own token.
type TokenSource interface {
	Token(ctx context.Context) (*AccessToken, error)
}

// ServiceAccountTokenSource signs an assertion and exchanges it on every call.
type ServiceAccountTokenSource struct {
	signer    *Signer
	exchanger *Exchanger
}

// NewServiceAccountTokenSource wires a signer to an exchanger.
func NewServiceAccountTokenSource(signer *Signer, exchanger *Exchanger) *ServiceAccountTokenSource {
	return &ServiceAccountTokenSource{signer: signer, exchanger: exchanger}
}

// NewTokenSource builds the signer and exchanger for cred against tokenURL.
func NewTokenSource(cred Credential, tokenURL, scope string, client *http.Client) (*ServiceAccountTokenSource, error) {
	opts := []SignerOption{}
	if tokenURL != "" {
		opts = append(opts, WithAudience(tokenURL))
	}
	if scope != "" {
		opts = append(opts, WithScope(scope))
	}
	signer, err := NewSigner(cred, opts...)
	if err != nil {
		return nil, err
	}
	return NewServiceAccountTokenSource(signer, NewExchanger(tokenURL, client)), nil
}

// Token implements TokenSource.
func (ts *ServiceAccountTokenSource) Token(ctx context.Context) (*AccessToken, error) {
	assertion, err := ts.signer.Sign()
	if err != nil {
		return nil, err
	}
	return ts.exchanger.Exchange(ctx, assertion)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package gauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// GrantTypeJWTBearer is the RFC 7523 grant type.
	GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	maxTokenResponseLen = 64 * 1024
)

// AccessToken is a short-lived bearer token. It lives for one pipeline run only.
type AccessToken struct {
	Value     string
	ExpiresIn time.Duration
}

// tokenResponse covers both the success and the error body of the token endpoint.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchanger trades a signed assertion for an access token. It makes exactly
// one attempt per call.
type Exchanger struct {
	tokenURL   string
	httpClient *http.Client
}

// NewExchanger creates an Exchanger. A nil client uses http.DefaultClient;
// callers bound the exchange through ctx.
func NewExchanger(tokenURL string, client *http.Client) *Exchanger {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Exchanger{tokenURL: tokenURL, httpClient: client}
}

// Exchange POSTs the JWT-bearer grant. Any transport failure, non-2xx status
// or a body without access_token yields an *AuthError.
func (e *Exchanger) Exchange(ctx context.Context, assertion string) (*AccessToken, error) {
	form := url.Values{}
	form.Set("grant_type", GrantTypeJWTBearer)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseLen))
	if err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	var tr tokenResponse
	// Error bodies are not always JSON; the status code still decides.
	_ = json.Unmarshal(body, &tr)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		authErr := &AuthError{
			StatusCode:  resp.StatusCode,
			Code:        tr.Error,
			Description: tr.ErrorDescription,
		}
		if authErr.Code == "" && authErr.Description == "" {
			authErr.Description = strings.TrimSpace(string(body))
		}
		return nil, authErr
	}

	if tr.AccessToken == "" {
		return nil, &AuthError{
			StatusCode: resp.StatusCode,
			Code:       tr.Error,
			Err:        errors.New("response has no access_token"),
		}
	}

	return &AccessToken{
		Value:     tr.AccessToken,
		ExpiresIn: time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}

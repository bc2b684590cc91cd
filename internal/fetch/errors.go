// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package fetch

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the upstream returned 404 or an empty
// identifiable payload. Surfaces to clients as 404.
var ErrNotFound = errors.New("upstream resource not found")

// UpstreamError indicates a network failure, timeout or upstream 5xx.
// Retried by the fetcher up to the configured limit; surfaces as 502.
type UpstreamError struct {
	Provider   string
	StatusCode int // 0 for network errors
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: upstream unreachable: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// AuthError indicates a missing or rejected upstream API key.
// Surfaces as 401 with a signup hint.
type AuthError struct {
	Provider string
	Hint     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: missing or rejected API key", e.Provider)
}

// RateLimitedError indicates an upstream 429 that persisted through
// backoff. Surfaces as 429.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: upstream rate limited", e.Provider)
}

// SessionError indicates the anti-bot proxy refused the call or the
// session expired. The session manager rotates and retries once before
// this escapes; after that it surfaces as 502.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("proxy session failure: %v", e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// retryable reports whether an error is worth another attempt: network
// failures and upstream 5xx qualify, anything else surfaces immediately.
func retryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode == 0 || ue.StatusCode >= 500
	}
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

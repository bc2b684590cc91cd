// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package fetch implements the outbound HTTP layer: the retrying client
// used by every direct provider, per-provider call spacing, and the
// anti-bot proxy session manager for scraped sources.
package fetch

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/logging"
)

// maxBodyBytes caps upstream response bodies. The largest legitimate
// payloads (full TMDB seasons, Open Library works) stay well under this.
const maxBodyBytes = 8 << 20

// Fetcher is the shared upstream HTTP client. One instance serves all
// direct (non-proxied) providers; it is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	cfg     config.FetchConfig
	limiter *Limiter
}

// NewFetcher builds the client with the configured JSON timeout.
func NewFetcher(cfg config.FetchConfig, limiter *Limiter) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.JSONTimeout},
		cfg:     cfg,
		limiter: limiter,
	}
}

// GetJSON performs a GET against an upstream provider and decodes the
// JSON response into out.
//
// Network failures and 5xx responses are retried with a linear backoff
// (RetryDelay x attempt) up to MaxRetries. A 429 waits out Retry-After
// when the upstream supplies one. Other 4xx responses surface
// immediately: 404 as ErrNotFound, 401/403 as AuthError.
func (f *Fetcher) GetJSON(ctx context.Context, source, url string, headers map[string]string, out any) error {
	body, err := f.get(ctx, source, url, "application/json", headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{Provider: source, Err: fmt.Errorf("decoding json response: %w", err)}
	}
	return nil
}

// GetXML is GetJSON for the few upstreams that still speak XML
// (BoardGameGeek's API, notably).
func (f *Fetcher) GetXML(ctx context.Context, source, url string, headers map[string]string, out any) error {
	body, err := f.get(ctx, source, url, "application/xml", headers)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return &UpstreamError{Provider: source, Err: fmt.Errorf("decoding xml response: %w", err)}
	}
	return nil
}

// get runs the spacing wait and the retry loop around one logical fetch,
// returning the raw response body.
func (f *Fetcher) get(ctx context.Context, source, url, accept string, headers map[string]string) ([]byte, error) {
	if err := f.limiter.Wait(ctx, source); err != nil {
		return nil, err
	}

	var body []byte
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.cfg.RetryDelay * time.Duration(attempt)
			var rl *RateLimitedError
			if errors.As(lastErr, &rl) && rl.RetryAfter > delay {
				delay = rl.RetryAfter
			}
			logging.Ctx(ctx).Debug().
				Str("source", source).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying upstream request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, lastErr = f.doRequest(ctx, source, url, accept, headers)
		if lastErr == nil {
			return body, nil
		}
		if !retryable(lastErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (f *Fetcher) doRequest(ctx context.Context, source, url, accept string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", source, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", accept)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: source, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, &UpstreamError{Provider: source, Err: err}
		}
		return body, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Provider: source}

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitedError{Provider: source, RetryAfter: retryAfter(resp)}

	default:
		return nil, &UpstreamError{Provider: source, StatusCode: resp.StatusCode}
	}
}

// retryAfter parses the Retry-After header, accepting only the seconds
// form. HTTP-date values are rare on the providers we call and fall back
// to the regular backoff.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

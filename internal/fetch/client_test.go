// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fxbrun/colporteur/internal/config"
)

func testFetchConfig() config.FetchConfig {
	return config.FetchConfig{
		UserAgent:   "colporteur-test/1.0",
		JSONTimeout: 5 * time.Second,
		MaxRetries:  2,
		RetryDelay:  time.Millisecond,
	}
}

func TestFetcher_GetJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "colporteur-test/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("Accept = %q", accept)
		}
		w.Write([]byte(`{"name":"tintin"}`))
	}))
	defer srv.Close()

	f := NewFetcher(testFetchConfig(), NewLimiter())
	var out struct {
		Name string `json:"name"`
	}
	if err := f.GetJSON(context.Background(), "test", srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Name != "tintin" {
		t.Errorf("decoded name = %q", out.Name)
	}
}

func TestFetcher_ExtraHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("X-Api-Key = %q", got)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := NewFetcher(testFetchConfig(), NewLimiter())
	var out map[string]any
	if err := f.GetJSON(context.Background(), "test", srv.URL, map[string]string{"X-Api-Key": "secret"}, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := NewFetcher(testFetchConfig(), NewLimiter())
	var out map[string]any
	if err := f.GetJSON(context.Background(), "test", srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("upstream called %d times, want 3", got)
	}
}

func TestFetcher_ExhaustedRetriesSurfaceLastError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(testFetchConfig(), NewLimiter())
	var out map[string]any
	err := f.GetJSON(context.Background(), "test", srv.URL, nil, &out)

	var upErr *UpstreamError
	if !errors.As(err, &upErr) || upErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err = %v, want UpstreamError 500", err)
	}
}

func TestFetcher_NotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(testFetchConfig(), NewLimiter())
	var out map[string]any
	err := f.GetJSON(context.Background(), "test", srv.URL, nil, &out)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("404 retried: %d calls", got)
	}
}

func TestFetcher_AuthErrors(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		f := NewFetcher(testFetchConfig(), NewLimiter())
		var out map[string]any
		err := f.GetJSON(context.Background(), "test", srv.URL, nil, &out)
		srv.Close()

		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Errorf("status %d: err = %v, want AuthError", status, err)
		}
	}
}

func TestFetcher_RateLimitedRetriesWithRetryAfter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := NewFetcher(testFetchConfig(), NewLimiter())
	var out map[string]any
	start := time.Now()
	if err := f.GetJSON(context.Background(), "test", srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("retry waited %v, want >= Retry-After", elapsed)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream called %d times, want 2", got)
	}
}

func TestFetcher_MalformedJSONIsUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	f := NewFetcher(testFetchConfig(), NewLimiter())
	var out map[string]any
	err := f.GetJSON(context.Background(), "test", srv.URL, nil, &out)

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
}

func TestFetcher_GetXML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); accept != "application/xml" {
			t.Errorf("Accept = %q", accept)
		}
		w.Write([]byte(`<items total="1"><item id="13"/></items>`))
	}))
	defer srv.Close()

	f := NewFetcher(testFetchConfig(), NewLimiter())
	var out struct {
		Total int `xml:"total,attr"`
		Items []struct {
			ID string `xml:"id,attr"`
		} `xml:"item"`
	}
	if err := f.GetXML(context.Background(), "test", srv.URL, nil, &out); err != nil {
		t.Fatalf("GetXML: %v", err)
	}
	if out.Total != 1 || len(out.Items) != 1 || out.Items[0].ID != "13" {
		t.Errorf("decoded = %+v", out)
	}
}

func TestFetcher_ContextCancellationAborts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testFetchConfig()
	cfg.RetryDelay = 10 * time.Second // retries would take forever
	f := NewFetcher(cfg, NewLimiter())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out map[string]any
	start := time.Now()
	err := f.GetJSON(ctx, "test", srv.URL, nil, &out)
	if err == nil {
		t.Fatal("expected an error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not interrupt the retry sleep")
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", &UpstreamError{Provider: "x", Err: errors.New("conn refused")}, true},
		{"500", &UpstreamError{Provider: "x", StatusCode: 500}, true},
		{"503", &UpstreamError{Provider: "x", StatusCode: 503}, true},
		{"418", &UpstreamError{Provider: "x", StatusCode: 418}, false},
		{"rate limited", &RateLimitedError{Provider: "x"}, true},
		{"not found", ErrNotFound, false},
		{"auth", &AuthError{Provider: "x"}, false},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Errorf("%s: retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/models"
	"github.com/fxbrun/colporteur/internal/provider"
)

func requestWithInfo(info *models.CacheCallInfo) *http.Request {
	r := httptest.NewRequest("GET", "/x/search?q=a", nil)
	if info != nil {
		r = r.WithContext(models.WithCacheInfo(r.Context(), info))
	}
	return r
}

func TestWriteJSON_CacheHeaders(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		info       *models.CacheCallInfo
		wantXCache string
	}{
		{"miss", &models.CacheCallInfo{Source: models.SourceAPI, Duration: 120 * time.Millisecond}, "MISS"},
		{"hit", &models.CacheCallInfo{Hit: true, Source: models.SourceSearchCache}, "HIT"},
		{"stale", &models.CacheCallInfo{Hit: true, Stale: true, Source: models.SourceDBOnly}, "STALE"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		writeJSON(w, requestWithInfo(tc.info), http.StatusOK, maxAgeSearch, map[string]any{"ok": true})

		if got := w.Header().Get("X-Cache"); got != tc.wantXCache {
			t.Errorf("%s: X-Cache = %q, want %q", tc.name, got, tc.wantXCache)
		}
		if got := w.Header().Get("X-Cache-Source"); got != string(tc.info.Source) {
			t.Errorf("%s: X-Cache-Source = %q, want %q", tc.name, got, tc.info.Source)
		}
		if w.Header().Get("X-Cache-Duration-ms") == "" {
			t.Errorf("%s: X-Cache-Duration-ms missing", tc.name)
		}
	}
}

func TestWriteJSON_CacheControl(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeJSON(w, requestWithInfo(nil), http.StatusOK, maxAgeSearch, map[string]any{})
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=300" {
		t.Errorf("Cache-Control = %q", got)
	}

	w = httptest.NewRecorder()
	writeJSON(w, requestWithInfo(nil), http.StatusOK, maxAgeNone, map[string]any{})
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestWriteJSON_ETagRoundTrip(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"stable": "body"}

	w := httptest.NewRecorder()
	writeJSON(w, requestWithInfo(nil), http.StatusOK, maxAgeSearch, payload)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag emitted")
	}

	r := requestWithInfo(nil)
	r.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	writeJSON(w, r, http.StatusOK, maxAgeSearch, payload)
	if w.Code != http.StatusNotModified {
		t.Errorf("matching If-None-Match: status = %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("304 carried a body: %s", w.Body.String())
	}
}

func TestWriteJSON_ETagIgnoredOnErrors(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeJSON(w, requestWithInfo(nil), http.StatusBadGateway, maxAgeNone, map[string]any{"x": 1})
	etag := w.Header().Get("ETag")

	r := requestWithInfo(nil)
	r.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	writeJSON(w, r, http.StatusBadGateway, maxAgeNone, map[string]any{"x": 1})
	if w.Code == http.StatusNotModified {
		t.Error("non-200 response must never shortcut to 304")
	}
}

func TestWriteError_Shape(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeError(w, requestWithInfo(nil), http.StatusBadRequest, "invalid_parameters",
		"q is required", "add ?q=", "googlebooks", []string{"query"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body models.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Success {
		t.Error("error body claims success")
	}
	if body.Code != "invalid_parameters" || body.Error != "q is required" {
		t.Errorf("body = %+v", body)
	}
	if body.Provider != "googlebooks" || body.Hint != "add ?q=" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Params) != 1 || body.Params[0] != "query" {
		t.Errorf("Params = %v", body.Params)
	}
	if body.Timestamp.IsZero() {
		t.Error("Timestamp missing")
	}
}

func TestWriteProviderError_Mapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", fetch.ErrNotFound, http.StatusNotFound, "not_found"},
		{"auth", &fetch.AuthError{Provider: "tmdb", Hint: "sign up"}, http.StatusUnauthorized, "auth_error"},
		{"rate limited", &fetch.RateLimitedError{Provider: "jikan"}, http.StatusTooManyRequests, "rate_limited"},
		{"upstream", &fetch.UpstreamError{Provider: "x", StatusCode: 502}, http.StatusBadGateway, "upstream_unavailable"},
		{"session", &fetch.SessionError{Err: errors.New("solver down")}, http.StatusBadGateway, "upstream_unavailable"},
		{"code unsupported", provider.ErrCodeUnsupported, http.StatusBadRequest, "unsupported"},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		writeProviderError(w, requestWithInfo(nil), "prov", tc.err)

		if w.Code != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.wantStatus)
		}
		var body models.ErrorBody
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		if body.Code != tc.wantCode {
			t.Errorf("%s: code = %q, want %q", tc.name, body.Code, tc.wantCode)
		}
	}
}

func TestWriteProviderError_AuthHintSurfaces(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeProviderError(w, requestWithInfo(nil), "tmdb",
		&fetch.AuthError{Provider: "tmdb", Hint: "get a key at themoviedb.org"})

	var body models.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Hint != "get a key at themoviedb.org" {
		t.Errorf("Hint = %q", body.Hint)
	}
}

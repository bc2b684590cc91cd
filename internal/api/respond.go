// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package api

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/logging"
	"github.com/fxbrun/colporteur/internal/models"
	"github.com/fxbrun/colporteur/internal/provider"
)

// Cache-Control max-age per endpoint class, seconds.
const (
	maxAgeSearch = 300
	maxAgeDetail = 3600
	maxAgeNone   = 0
)

// writeJSON encodes the payload with the cache telemetry headers and a
// weak ETag. A matching If-None-Match short-circuits to 304.
func writeJSON(w http.ResponseWriter, r *http.Request, status, maxAge int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("response encoding failed")
		http.Error(w, `{"success":false,"error":"encoding failure","code":"internal_error"}`, http.StatusInternalServerError)
		return
	}

	setCacheHeaders(w, r)
	if maxAge > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}

	etag := weakETag(body)
	w.Header().Set("ETag", etag)
	if status == http.StatusOK && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("response write failed")
	}
}

// setCacheHeaders translates the request's CacheCallInfo into the
// X-Cache response headers.
func setCacheHeaders(w http.ResponseWriter, r *http.Request) {
	info := models.CacheInfoFrom(r.Context())
	if info == nil {
		return
	}

	switch {
	case info.Hit && info.Stale:
		w.Header().Set("X-Cache", "STALE")
	case info.Hit:
		w.Header().Set("X-Cache", "HIT")
	default:
		w.Header().Set("X-Cache", "MISS")
	}
	if info.Source != "" {
		w.Header().Set("X-Cache-Source", string(info.Source))
	}
	w.Header().Set("X-Cache-Duration-ms", strconv.FormatInt(info.Duration.Milliseconds(), 10))
}

func weakETag(body []byte) string {
	h := fnv.New64a()
	h.Write(body)
	return fmt.Sprintf(`W/"%x"`, h.Sum64())
}

// writeError emits the uniform error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message, hint, providerTag string, params []string) {
	writeJSON(w, r, status, maxAgeNone, models.ErrorBody{
		Success:   false,
		Error:     message,
		Code:      code,
		Hint:      hint,
		Params:    params,
		Provider:  providerTag,
		Timestamp: time.Now().UTC(),
	})
}

// writeProviderError maps the error kinds of the fetch and provider
// layers onto HTTP statuses.
func writeProviderError(w http.ResponseWriter, r *http.Request, providerTag string, err error) {
	var authErr *fetch.AuthError
	var rlErr *fetch.RateLimitedError
	var upErr *fetch.UpstreamError
	var sessErr *fetch.SessionError

	switch {
	case errors.Is(err, fetch.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "upstream resource not found", "", providerTag, nil)
	case errors.As(err, &authErr):
		writeError(w, r, http.StatusUnauthorized, "auth_error", authErr.Error(), authErr.Hint, providerTag, nil)
	case errors.As(err, &rlErr):
		writeError(w, r, http.StatusTooManyRequests, "rate_limited", rlErr.Error(), "slow down and retry later", providerTag, nil)
	case errors.As(err, &sessErr):
		writeError(w, r, http.StatusBadGateway, "upstream_unavailable", sessErr.Error(), "", providerTag, nil)
	case errors.As(err, &upErr):
		writeError(w, r, http.StatusBadGateway, "upstream_unavailable", upErr.Error(), "", providerTag, nil)
	case errors.Is(err, provider.ErrCodeUnsupported):
		writeError(w, r, http.StatusBadRequest, "unsupported", err.Error(), "this provider has no barcode lookup", providerTag, nil)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("provider", providerTag).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error", "", providerTag, nil)
	}
}

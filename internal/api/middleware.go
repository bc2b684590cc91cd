// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package api

import (
	"net/http"

	"github.com/fxbrun/colporteur/internal/logging"
	"github.com/fxbrun/colporteur/internal/models"
)

// RequestID generates a unique id per request, honoring one supplied by
// an upstream proxy, and threads it through the response header and the
// logging context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CacheInfo attaches a fresh CacheCallInfo handle to every request so
// the provider shell can report how the cache behaved and the responders
// can translate that into the X-Cache headers. One handle per request;
// concurrent requests never share.
func CacheInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := models.WithCacheInfo(r.Context(), &models.CacheCallInfo{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

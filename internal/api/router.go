// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the route tree. Static system routes are mounted
// before the {provider} wildcard so "health" or "metrics" can never be
// mistaken for a provider tag.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Cache", "X-Cache-Source", "X-Cache-Duration-ms", "ETag"},
		MaxAge:         300,
	}))
	r.Use(CacheInfo)

	// System endpoints. The rate limit here is generous: these are
	// monitoring routes, not the hot path.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(300, time.Minute))
		r.Get("/health", h.Health)
		r.Get("/version", h.Version)
		r.Get("/stats", h.Stats)
		r.Delete("/cache", h.PurgeCache)
		r.Delete("/metrics", h.ResetMetrics)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/music/search", h.MusicSearch)
	r.Get("/search/local", h.LocalSearch)

	r.Route("/{provider}", func(r chi.Router) {
		r.Get("/search", h.Search)
		r.Get("/details", h.Details)
		r.Get("/code", h.Code)
	})

	return r
}

// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package api provides the HTTP surface: per-provider search, details and
// barcode routes sharing one uniform envelope, the multi-source music
// fan-out, and the system endpoints.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/database"
	"github.com/fxbrun/colporteur/internal/logging"
	"github.com/fxbrun/colporteur/internal/metrics"
	"github.com/fxbrun/colporteur/internal/models"
	"github.com/fxbrun/colporteur/internal/provider"
)

// Handler carries the dependencies of every HTTP endpoint. The db field
// is nil when storage is disabled; only the system endpoints look at it
// directly, the provider routes go through the cache engine.
type Handler struct {
	cfg       *config.Config
	registry  *provider.Registry
	db        *database.DB
	collector *metrics.Collector
	version   string
	started   time.Time
}

// NewHandler wires the endpoint dependencies.
func NewHandler(cfg *config.Config, registry *provider.Registry, db *database.DB, collector *metrics.Collector, version string) *Handler {
	return &Handler{
		cfg:       cfg,
		registry:  registry,
		db:        db,
		collector: collector,
		version:   version,
		started:   time.Now(),
	}
}

// shell resolves the {provider} route parameter, writing a 404 with the
// known tags when it does not match a registered provider.
func (h *Handler) shell(w http.ResponseWriter, r *http.Request) *provider.Shell {
	tag := chi.URLParam(r, "provider")
	sh := h.registry.Get(tag)
	if sh == nil {
		hint := "known providers: " + strings.Join(h.registry.Tags(), ", ")
		writeError(w, r, http.StatusNotFound, "unknown_provider",
			fmt.Sprintf("unknown provider %q", tag), hint, tag, nil)
		return nil
	}
	return sh
}

// Search handles GET /{provider}/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	sh := h.shell(w, r)
	if sh == nil {
		return
	}
	tag := sh.Descriptor().Tag

	p, verr := parseSearchParams(r, sh.Descriptor().MaxResults)
	if verr != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_parameters",
			verr.Error(), "", tag, verr.Fields())
		return
	}

	env, err := sh.Search(r.Context(), p.query(), p.Refresh)
	if errors.Is(err, provider.ErrNotCached) {
		// Cache-only mode with nothing stored: an empty result set, not
		// an error. The upstream was deliberately never consulted.
		writeJSON(w, r, http.StatusOK, maxAgeNone, emptySearchEnvelope(tag, p.Query, p.Lang, p.AutoTrad))
		return
	}
	if err != nil {
		writeProviderError(w, r, tag, err)
		return
	}
	writeJSON(w, r, http.StatusOK, maxAgeSearch, env)
}

// Details handles GET /{provider}/details?detailUrl=/{provider}/{type}/{id}.
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	sh := h.shell(w, r)
	if sh == nil {
		return
	}
	tag := sh.Descriptor().Tag

	p, err := parseDetailParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_parameters",
			err.Error(), "expected detailUrl=/{provider}/{type}/{id}", tag, []string{"detailUrl"})
		return
	}
	if p.Provider != tag {
		writeError(w, r, http.StatusBadRequest, "invalid_parameters",
			fmt.Sprintf("detailUrl targets provider %q, route is %q", p.Provider, tag),
			"", tag, []string{"detailUrl"})
		return
	}

	q := provider.Query{Lang: p.Lang, AutoTrad: p.AutoTrad}
	env, err := sh.GetDetails(r.Context(), p.ID, q, p.Refresh)
	if errors.Is(err, provider.ErrNotCached) {
		writeJSON(w, r, http.StatusOK, maxAgeNone, &models.DetailEnvelope{
			Success:  true,
			Provider: tag,
			ID:       p.ID,
			Meta:     models.Meta{Lang: p.Lang, AutoTrad: p.AutoTrad},
		})
		return
	}
	if err != nil {
		writeProviderError(w, r, tag, err)
		return
	}
	writeJSON(w, r, http.StatusOK, maxAgeDetail, env)
}

// Code handles GET /{provider}/code?code=, the barcode lookup.
func (h *Handler) Code(w http.ResponseWriter, r *http.Request) {
	sh := h.shell(w, r)
	if sh == nil {
		return
	}
	tag := sh.Descriptor().Tag

	p, verr := parseCodeParams(r)
	if verr != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_parameters",
			verr.Error(), "code must be an EAN/UPC/ISBN of at least 8 digits", tag, verr.Fields())
		return
	}

	env, err := sh.SearchByCode(r.Context(), p.Code, provider.Query{Lang: p.Lang})
	if errors.Is(err, provider.ErrNotCached) {
		writeJSON(w, r, http.StatusOK, maxAgeNone, emptySearchEnvelope(tag, p.Code, p.Lang, false))
		return
	}
	if err != nil {
		writeProviderError(w, r, tag, err)
		return
	}
	writeJSON(w, r, http.StatusOK, maxAgeSearch, env)
}

// MusicSearch handles GET /music/search. With source=all (the default)
// the query fans out across every album provider concurrently; naming a
// single source narrows to that provider's shell.
func (h *Handler) MusicSearch(w http.ResponseWriter, r *http.Request) {
	p, verr := parseSearchParams(r, 0)
	if verr != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_parameters",
			verr.Error(), "", "music", verr.Fields())
		return
	}

	source := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("source")))
	if source != "" && source != "all" {
		sh := h.registry.Get(source)
		if sh == nil || sh.Descriptor().Type != models.TypeAlbum {
			hint := "music sources: " + strings.Join(h.registry.TagsByType(models.TypeAlbum), ", ") + ", all"
			writeError(w, r, http.StatusNotFound, "unknown_provider",
				fmt.Sprintf("unknown music source %q", source), hint, source, nil)
			return
		}
		env, err := sh.Search(r.Context(), p.query(), p.Refresh)
		if errors.Is(err, provider.ErrNotCached) {
			writeJSON(w, r, http.StatusOK, maxAgeNone, emptySearchEnvelope(source, p.Query, p.Lang, p.AutoTrad))
			return
		}
		if err != nil {
			writeProviderError(w, r, source, err)
			return
		}
		writeJSON(w, r, http.StatusOK, maxAgeSearch, env)
		return
	}

	var shells []*provider.Shell
	for _, tag := range h.registry.TagsByType(models.TypeAlbum) {
		shells = append(shells, h.registry.Get(tag))
	}

	env := provider.FanOut(r.Context(), shells, p.query(), p.Refresh)
	if !env.Success {
		// Partial results are still results; only every branch failing
		// makes the aggregate a gateway error.
		writeJSON(w, r, http.StatusBadGateway, maxAgeNone, env)
		return
	}
	writeJSON(w, r, http.StatusOK, maxAgeSearch, env)
}

// LocalSearch handles GET /search/local: a trigram search over the
// denormalized item columns, never touching any upstream. Optional
// source= and type= parameters narrow the scan. Without storage it
// degrades to an empty result set.
func (h *Handler) LocalSearch(w http.ResponseWriter, r *http.Request) {
	p, verr := parseSearchParams(r, 0)
	if verr != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_parameters",
			verr.Error(), "", "local", verr.Fields())
		return
	}

	items := []*models.Item{}
	if h.db != nil {
		var err error
		items, err = h.db.SearchLocal(r.Context(), p.Query, database.LocalSearchOptions{
			Source:              r.URL.Query().Get("source"),
			Type:                r.URL.Query().Get("type"),
			Limit:               p.Max,
			Offset:              (p.Page - 1) * p.Max,
			SimilarityThreshold: h.cfg.Cache.SimilarityThreshold,
		})
		if err != nil {
			writeProviderError(w, r, "local", err)
			return
		}
		if items == nil {
			items = []*models.Item{}
		}
	}

	writeJSON(w, r, http.StatusOK, maxAgeSearch, map[string]any{
		"success":  true,
		"provider": "local",
		"query":    p.Query,
		"total":    len(items),
		"count":    len(items),
		"data":     items,
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"version":   h.version,
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"cacheMode": h.cfg.Cache.Mode,
		"providers": h.registry.Tags(),
	}

	status := http.StatusOK
	switch {
	case h.db == nil:
		resp["database"] = "disabled"
	default:
		if err := h.db.Ping(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = map[string]any{"error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			resp["database"] = h.db.Stats()
		}
	}
	writeJSON(w, r, status, maxAgeNone, resp)
}

// Version handles GET /version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, maxAgeNone, map[string]any{
		"name":    "colporteur",
		"version": h.version,
	})
}

// Stats handles GET /stats: in-process counters since the last reset
// merged with today's persisted rollup.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"success": true,
		"since":   h.collector.Since(),
		"sources": h.collector.Snapshot(),
	}
	if h.db != nil {
		today, err := h.db.TodayStats(r.Context())
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("today stats unavailable")
		} else {
			resp["today"] = today
		}
	}
	writeJSON(w, r, http.StatusOK, maxAgeNone, resp)
}

// PurgeCache handles DELETE /cache, removing expired rows from both
// cache tiers. A no-op without storage.
func (h *Handler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"success":        true,
		"purgedItems":    int64(0),
		"purgedSearches": int64(0),
	}
	if h.db == nil {
		writeJSON(w, r, http.StatusOK, maxAgeNone, resp)
		return
	}

	items, err := h.db.PurgeExpired(r.Context(), 0)
	if err != nil {
		writeProviderError(w, r, "", err)
		return
	}
	searches, err := h.db.PurgeExpiredSearches(r.Context())
	if err != nil {
		writeProviderError(w, r, "", err)
		return
	}
	resp["purgedItems"] = items
	resp["purgedSearches"] = searches
	logging.Ctx(r.Context()).Info().
		Int64("items", items).
		Int64("searches", searches).
		Msg("expired cache rows purged")
	writeJSON(w, r, http.StatusOK, maxAgeNone, resp)
}

// ResetMetrics handles DELETE /metrics, discarding the in-process
// counters. The persisted daily rollup is untouched.
func (h *Handler) ResetMetrics(w http.ResponseWriter, r *http.Request) {
	h.collector.Reset()
	writeJSON(w, r, http.StatusOK, maxAgeNone, map[string]any{"success": true})
}

// emptySearchEnvelope is the 200 body for cache-only misses: a valid
// envelope with zero results.
func emptySearchEnvelope(tag, query, lang string, autoTrad bool) *models.SearchEnvelope {
	return &models.SearchEnvelope{
		Success:  true,
		Provider: tag,
		Query:    query,
		Data:     []map[string]any{},
		Meta:     models.Meta{Lang: lang, AutoTrad: autoTrad},
	}
}

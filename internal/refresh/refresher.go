// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package refresh implements the proactive refresher: a background loop
// that re-fetches popular items shortly before their TTL elapses, so the
// hot part of the cache stays warm without a client paying the upstream
// latency.
package refresh

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/database"
	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/logging"
	"github.com/fxbrun/colporteur/internal/metrics"
	"github.com/fxbrun/colporteur/internal/models"
	"github.com/fxbrun/colporteur/internal/provider"
)

// CandidateStore selects refresh-eligible rows. Implemented by
// *database.DB.
type CandidateStore interface {
	ItemsToRefresh(ctx context.Context, window time.Duration, limit int) ([]database.RefreshCandidate, error)
}

// Refresher is the stale-popular refresh loop. It implements
// suture.Service and runs under the application supervisor.
type Refresher struct {
	store    CandidateStore
	registry *provider.Registry
	cfg      config.RefreshConfig
}

// NewRefresher wires the loop over the candidate store and the provider
// registry.
func NewRefresher(store CandidateStore, registry *provider.Registry, cfg config.RefreshConfig) *Refresher {
	return &Refresher{store: store, registry: registry, cfg: cfg}
}

// Serve runs refresh cycles until the context is canceled.
func (r *Refresher) Serve(ctx context.Context) error {
	interval := r.cfg.CheckInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

// cycle runs one pass: select candidates, re-fetch each through its
// provider shell with the cache read skipped, bounded by the configured
// concurrency. Failures are logged and skipped; the row stays eligible
// for the next cycle until it actually expires.
func (r *Refresher) cycle(ctx context.Context) {
	metrics.RefreshCycles.Inc()

	limit := r.cfg.MaxPerCycle
	if limit <= 0 {
		limit = 50
	}
	window := r.cfg.Window
	if window <= 0 {
		window = 24 * time.Hour
	}

	candidates, err := r.store.ItemsToRefresh(ctx, window, limit)
	if err != nil {
		logging.Warn().Err(err).Msg("refresh candidate selection failed")
		return
	}
	if len(candidates) == 0 {
		return
	}
	logging.Info().Int("candidates", len(candidates)).Msg("refresh cycle starting")

	concurrency := r.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, c := range candidates {
		g.Go(func() error {
			r.refreshOne(gctx, c)

			// Per-item delay keeps a cycle from bursting upstreams on
			// top of their per-provider spacing.
			if r.cfg.Delay > 0 {
				select {
				case <-time.After(r.cfg.Delay):
				case <-gctx.Done():
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Refresher) refreshOne(ctx context.Context, c database.RefreshCandidate) {
	shell := r.registry.Get(c.Source)
	if shell == nil {
		// Provider removed from the build but rows remain; they will
		// expire out on their own.
		metrics.RefreshedItems.WithLabelValues(c.Source, "orphaned").Inc()
		return
	}

	refreshCtx := models.WithCacheInfo(ctx, &models.CacheCallInfo{})
	_, err := shell.GetDetails(refreshCtx, c.SourceID, provider.Query{}, true)
	switch {
	case err == nil:
		metrics.RefreshedItems.WithLabelValues(c.Source, "ok").Inc()
	case errors.Is(err, fetch.ErrNotFound):
		// Gone upstream; let the stale row expire rather than serve a
		// fabricated deletion.
		metrics.RefreshedItems.WithLabelValues(c.Source, "gone").Inc()
		logging.Debug().Str("id", c.ID).Msg("refresh target gone upstream")
	default:
		metrics.RefreshedItems.WithLabelValues(c.Source, "error").Inc()
		logging.Warn().Err(err).Str("id", c.ID).Msg("refresh failed")
	}
}

func (r *Refresher) String() string { return "refresh.refresher" }

// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package cache

import (
	"context"
	"time"

	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/database"
	"github.com/fxbrun/colporteur/internal/logging"
	"github.com/fxbrun/colporteur/internal/metrics"
	"github.com/fxbrun/colporteur/internal/models"
)

// SearchStore is the slice of the storage layer the search cache
// consumes. Implemented by *database.DB.
type SearchStore interface {
	GetCachedSearch(ctx context.Context, provider, searchType, fingerprint, rawQuery string, opts database.SearchLookupOptions) (*database.CachedSearch, error)
	SaveSearchResults(ctx context.Context, provider, searchType, fingerprint, rawQuery string, env *models.SearchEnvelope, resultIDs []string, ttl time.Duration) error
}

// SearchCache is the per-query cache keyed by the fingerprint of
// (provider, type, query, params), with a trigram-similarity fallback for
// close-enough queries.
type SearchCache struct {
	store     SearchStore
	cfg       config.CacheConfig
	collector *metrics.Collector
	pool      *Writeback
}

// NewSearchCache wires the search cache over a store and the shared
// write-back pool.
func NewSearchCache(store SearchStore, cfg config.CacheConfig, collector *metrics.Collector, pool *Writeback) *SearchCache {
	return &SearchCache{store: store, cfg: cfg, collector: collector, pool: pool}
}

// Lookup returns a cached envelope for the query, or nil on miss. Exact
// fingerprint matches are tried first; fuzzy hits carry a non-nil Match.
func (c *SearchCache) Lookup(ctx context.Context, provider, searchType, query string, params map[string]any, exactMatch bool) *database.CachedSearch {
	fp := Fingerprint(query, params)
	hit, err := c.store.GetCachedSearch(ctx, provider, searchType, fp, query, database.SearchLookupOptions{
		ExactMatch:          exactMatch,
		SimilarityThreshold: c.cfg.SimilarityThreshold,
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("provider", provider).Msg("search cache read failed")
		c.collector.RecordCacheMiss(provider, "search")
		return nil
	}
	if hit == nil {
		c.collector.RecordCacheMiss(provider, "search")
		return nil
	}
	c.collector.RecordCacheHit(provider, "search")
	return hit
}

// Store enqueues an upsert of one search envelope. resultIDs are the
// provider-scoped ids of the constituent items.
func (c *SearchCache) Store(ctx context.Context, provider, searchType, query string, params map[string]any, env *models.SearchEnvelope, resultIDs []string) {
	c.StoreWithTTL(ctx, provider, searchType, query, params, env, resultIDs, c.cfg.SearchTTL)
}

// StoreWithTTL is Store with an explicit lifetime. Barcode lookups use it
// to cache under the provider's item TTL instead of the short search TTL:
// a barcode identifies one physical product and its resolution does not
// drift the way free-text rankings do.
func (c *SearchCache) StoreWithTTL(ctx context.Context, provider, searchType, query string, params map[string]any, env *models.SearchEnvelope, resultIDs []string, ttl time.Duration) {
	if env == nil {
		return
	}
	// Failed envelopes would pin an upstream outage for a full TTL, so
	// they are only persisted when explicitly configured.
	if !env.Success && !c.cfg.CacheAllFailed {
		return
	}
	fp := Fingerprint(query, params)
	c.pool.Submit("search:"+provider+":"+fp, func(ctx context.Context) error {
		return c.store.SaveSearchResults(ctx, provider, searchType, fp, query, env, resultIDs, ttl)
	})
}

// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxbrun/colporteur/internal/cache"
	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/metrics"
	"github.com/fxbrun/colporteur/internal/models"
)

// ErrNotCached is returned in db_only mode when the cache has nothing
// for the request. Upstream is never consulted in that mode.
var ErrNotCached = errors.New("not available in cache-only mode")

// ErrCodeUnsupported is returned when a provider has no barcode lookup.
var ErrCodeUnsupported = errors.New("provider does not support barcode lookup")

const (
	searchTypeSearch = "search"
	searchTypeCode   = "code"
)

// Shell wraps one connector with the read-through cache. Every request
// flows cache-first in hybrid mode, cache-only in db_only mode and
// upstream-only in api_only mode; the connector underneath never knows
// which.
//
// The shell reports how each call resolved through the CacheCallInfo
// handle attached to the request context.
type Shell struct {
	p         Provider
	desc      Descriptor
	items     *cache.ItemCache
	searches  *cache.SearchCache
	cfg       *config.Config
	collector *metrics.Collector
}

// NewShell wraps a connector.
func NewShell(p Provider, items *cache.ItemCache, searches *cache.SearchCache, cfg *config.Config, collector *metrics.Collector) *Shell {
	return &Shell{
		p:         p,
		desc:      p.Descriptor(),
		items:     items,
		searches:  searches,
		cfg:       cfg,
		collector: collector,
	}
}

// Descriptor exposes the wrapped connector's static properties.
func (s *Shell) Descriptor() Descriptor { return s.desc }

// cacheInfo returns the request's telemetry handle, or a throwaway one
// so the shell code never nil-checks.
func cacheInfo(ctx context.Context) *models.CacheCallInfo {
	if info := models.CacheInfoFrom(ctx); info != nil {
		return info
	}
	return &models.CacheCallInfo{}
}

// Search resolves a free-text search: search cache first, then upstream,
// with the envelope and its constituent items written back
// fire-and-forget. forceRefresh skips the cache read but still writes.
func (s *Shell) Search(ctx context.Context, q Query, forceRefresh bool) (*models.SearchEnvelope, error) {
	info := cacheInfo(ctx)
	start := time.Now()
	defer func() { info.Duration = time.Since(start) }()

	mode := s.cfg.Cache.Mode
	tag := s.desc.Tag
	s.collector.RecordSearch(tag)

	if mode == config.ModeDBOnly {
		hit := s.searches.Lookup(ctx, tag, searchTypeSearch, q.Term, q.params(), false)
		if hit == nil {
			return nil, ErrNotCached
		}
		info.Hit = true
		info.Source = models.SourceDBOnly
		info.Stale = true // db_only serves without regard to TTL
		hit.Envelope.CacheMatch = hit.Match
		return hit.Envelope, nil
	}

	if mode == config.ModeHybrid && !forceRefresh {
		if hit := s.searches.Lookup(ctx, tag, searchTypeSearch, q.Term, q.params(), false); hit != nil {
			info.Hit = true
			info.Source = models.SourceSearchCache
			hit.Envelope.CacheMatch = hit.Match
			return hit.Envelope, nil
		}
	}

	env, err := s.upstreamSearch(ctx, q)
	if err != nil {
		return nil, err
	}

	if mode == config.ModeAPIOnly {
		info.Source = models.SourceAPIOnly
		return env, nil
	}

	info.Source = models.SourceAPI
	resultIDs := s.warmItems(ctx, env)
	s.searches.Store(ctx, tag, searchTypeSearch, q.Term, q.params(), env, resultIDs)
	return env, nil
}

// GetDetails resolves one item by provider-scoped id: item cache first,
// then upstream with write-back.
func (s *Shell) GetDetails(ctx context.Context, id string, q Query, forceRefresh bool) (*models.DetailEnvelope, error) {
	info := cacheInfo(ctx)
	start := time.Now()
	defer func() { info.Duration = time.Since(start) }()

	mode := s.cfg.Cache.Mode
	tag := s.desc.Tag

	if mode == config.ModeDBOnly {
		item := s.items.Get(ctx, tag, id)
		if item == nil {
			return nil, ErrNotCached
		}
		info.Hit = true
		info.Source = models.SourceDBOnly
		info.Stale = item.Expired(time.Now())
		return detailFromItem(tag, item, q), nil
	}

	if mode == config.ModeHybrid && !forceRefresh {
		if item := s.items.Get(ctx, tag, id); item != nil {
			info.Hit = true
			info.Source = models.SourceCache
			return detailFromItem(tag, item, q), nil
		}
	}

	env, err := s.upstreamDetails(ctx, id, q)
	if err != nil {
		return nil, err
	}

	if mode == config.ModeAPIOnly {
		info.Source = models.SourceAPIOnly
		return env, nil
	}

	info.Source = models.SourceAPI
	if name := displayName(env.Data); name != "" {
		s.items.Save(ctx, tag, id, s.desc.Type, name, env.Data, cache.SaveOptions{})
	}
	return env, nil
}

// SearchByCode resolves a barcode. Cached under the provider's item TTL
// rather than the short search TTL: a barcode identifies one physical
// product.
func (s *Shell) SearchByCode(ctx context.Context, code string, q Query) (*models.SearchEnvelope, error) {
	cs, ok := s.p.(CodeSearcher)
	if !ok {
		return nil, ErrCodeUnsupported
	}

	info := cacheInfo(ctx)
	start := time.Now()
	defer func() { info.Duration = time.Since(start) }()

	mode := s.cfg.Cache.Mode
	tag := s.desc.Tag
	s.collector.RecordSearch(tag)

	// Barcode lookups are always exact: two different codes must never
	// fuzzy-match each other.
	if mode == config.ModeDBOnly {
		hit := s.searches.Lookup(ctx, tag, searchTypeCode, code, nil, true)
		if hit == nil {
			return nil, ErrNotCached
		}
		info.Hit = true
		info.Source = models.SourceDBOnly
		info.Stale = true
		return hit.Envelope, nil
	}

	if mode == config.ModeHybrid {
		if hit := s.searches.Lookup(ctx, tag, searchTypeCode, code, nil, true); hit != nil {
			info.Hit = true
			info.Source = models.SourceSearchCache
			return hit.Envelope, nil
		}
	}

	env, err := s.upstreamCode(ctx, cs, code, q)
	if err != nil {
		return nil, err
	}

	if mode == config.ModeAPIOnly {
		info.Source = models.SourceAPIOnly
		return env, nil
	}

	info.Source = models.SourceAPI
	resultIDs := s.warmItems(ctx, env)
	s.searches.StoreWithTTL(ctx, tag, searchTypeCode, code, nil, env, resultIDs, s.cfg.Cache.TTLFor(tag))
	return env, nil
}

func (s *Shell) upstreamSearch(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	start := time.Now()
	env, err := s.p.Search(ctx, q)
	s.recordUpstream(start, err)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, fmt.Errorf("%s: connector returned nil envelope", s.desc.Tag)
	}
	return env, nil
}

func (s *Shell) upstreamDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	start := time.Now()
	env, err := s.p.GetDetails(ctx, id, q)
	s.recordUpstream(start, err)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, fmt.Errorf("%s: connector returned nil envelope", s.desc.Tag)
	}
	return env, nil
}

func (s *Shell) upstreamCode(ctx context.Context, cs CodeSearcher, code string, q Query) (*models.SearchEnvelope, error) {
	start := time.Now()
	env, err := cs.SearchByCode(ctx, code, q)
	s.recordUpstream(start, err)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, fmt.Errorf("%s: connector returned nil envelope", s.desc.Tag)
	}
	return env, nil
}

func (s *Shell) recordUpstream(start time.Time, err error) {
	s.collector.RecordRequest(s.desc.Tag, time.Since(start))
	if err != nil {
		s.collector.RecordError(s.desc.Tag)
	}
}

// warmItems write-backs every result of a search envelope as an
// individual item, so a follow-up details call hits the cache. Results
// without a usable id or name are skipped. Returns the provider-scoped
// ids of the persisted items.
func (s *Shell) warmItems(ctx context.Context, env *models.SearchEnvelope) []string {
	if env == nil || !env.Success {
		return nil
	}
	resultIDs := make([]string, 0, len(env.Data))
	for _, result := range env.Data {
		id := scalarID(result["id"])
		name := displayName(result)
		if id == "" || name == "" {
			continue
		}
		resultIDs = append(resultIDs, models.ItemID(s.desc.Tag, id))
		s.items.Save(ctx, s.desc.Tag, id, s.desc.Type, name, result, cache.SaveOptions{})
	}
	return resultIDs
}

// detailFromItem rebuilds a detail envelope from a cached row. The raw
// payload round-trips unchanged.
func detailFromItem(tag string, item *models.Item, q Query) *models.DetailEnvelope {
	return &models.DetailEnvelope{
		Success:  true,
		Provider: tag,
		ID:       item.SourceID,
		Data:     item.Data,
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}
}

func displayName(data map[string]any) string {
	for _, key := range []string{"name", "title"} {
		if s, ok := data[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func scalarID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case int:
		return fmt.Sprintf("%d", t)
	default:
		return ""
	}
}

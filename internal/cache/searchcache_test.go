// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fxbrun/colporteur/internal/database"
	"github.com/fxbrun/colporteur/internal/metrics"
	"github.com/fxbrun/colporteur/internal/models"
)

type savedSearch struct {
	provider    string
	searchType  string
	fingerprint string
	rawQuery    string
	resultIDs   []string
	ttl         time.Duration
}

type fakeSearchStore struct {
	mu       sync.Mutex
	rows     map[string]*database.CachedSearch // keyed by fingerprint
	saves    []savedSearch
	lastOpts database.SearchLookupOptions
}

func newFakeSearchStore() *fakeSearchStore {
	return &fakeSearchStore{rows: make(map[string]*database.CachedSearch)}
}

func (s *fakeSearchStore) GetCachedSearch(ctx context.Context, provider, searchType, fingerprint, rawQuery string, opts database.SearchLookupOptions) (*database.CachedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOpts = opts
	return s.rows[fingerprint], nil
}

func (s *fakeSearchStore) SaveSearchResults(ctx context.Context, provider, searchType, fingerprint, rawQuery string, env *models.SearchEnvelope, resultIDs []string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, savedSearch{provider, searchType, fingerprint, rawQuery, resultIDs, ttl})
	s.rows[fingerprint] = &database.CachedSearch{Envelope: env}
	return nil
}

func TestSearchCache_LookupMissThenHit(t *testing.T) {
	t.Parallel()

	store := newFakeSearchStore()
	wb := NewWriteback(1, 8)
	c := NewSearchCache(store, testCacheConfig(), metrics.NewCollector(), wb)
	ctx := context.Background()
	params := map[string]any{"page": 1}

	if hit := c.Lookup(ctx, "googlebooks", "search", "tintin", params, false); hit != nil {
		t.Fatalf("Lookup on empty store = %+v, want nil", hit)
	}

	env := &models.SearchEnvelope{Success: true, Provider: "googlebooks", Query: "tintin"}
	c.Store(ctx, "googlebooks", "search", "tintin", params, env, []string{"googlebooks:x1"})
	wb.Close()

	hit := c.Lookup(ctx, "googlebooks", "search", "tintin", params, false)
	if hit == nil || hit.Envelope.Query != "tintin" {
		t.Fatalf("Lookup after Store = %+v, want stored envelope", hit)
	}
}

func TestSearchCache_LookupPassesThreshold(t *testing.T) {
	t.Parallel()

	store := newFakeSearchStore()
	wb := NewWriteback(1, 8)
	defer wb.Close()
	c := NewSearchCache(store, testCacheConfig(), metrics.NewCollector(), wb)

	c.Lookup(context.Background(), "googlebooks", "search", "tintin", nil, false)
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.lastOpts.ExactMatch {
		t.Error("free-text lookup should allow the fuzzy fallback")
	}
	if store.lastOpts.SimilarityThreshold != 0.4 {
		t.Errorf("threshold = %v, want 0.4", store.lastOpts.SimilarityThreshold)
	}
}

func TestSearchCache_ExactLookupDisablesFuzzy(t *testing.T) {
	t.Parallel()

	store := newFakeSearchStore()
	wb := NewWriteback(1, 8)
	defer wb.Close()
	c := NewSearchCache(store, testCacheConfig(), metrics.NewCollector(), wb)

	c.Lookup(context.Background(), "googlebooks", "code", "9782203001010", nil, true)
	store.mu.Lock()
	defer store.mu.Unlock()
	if !store.lastOpts.ExactMatch {
		t.Error("barcode lookup must be exact-only")
	}
}

func TestSearchCache_StoreUsesSearchTTL(t *testing.T) {
	t.Parallel()

	store := newFakeSearchStore()
	wb := NewWriteback(1, 8)
	c := NewSearchCache(store, testCacheConfig(), metrics.NewCollector(), wb)

	env := &models.SearchEnvelope{Success: true}
	c.Store(context.Background(), "googlebooks", "search", "tintin", nil, env, nil)
	wb.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(store.saves))
	}
	if store.saves[0].ttl != 7*24*time.Hour {
		t.Errorf("ttl = %v, want the search TTL", store.saves[0].ttl)
	}
}

func TestSearchCache_StoreWithTTLOverrides(t *testing.T) {
	t.Parallel()

	store := newFakeSearchStore()
	wb := NewWriteback(1, 8)
	c := NewSearchCache(store, testCacheConfig(), metrics.NewCollector(), wb)

	env := &models.SearchEnvelope{Success: true}
	c.StoreWithTTL(context.Background(), "lego", "code", "5702016617191", nil, env, nil, 90*24*time.Hour)
	wb.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saves) != 1 || store.saves[0].ttl != 90*24*time.Hour {
		t.Errorf("saves = %+v, want one save with the item TTL", store.saves)
	}
}

func TestSearchCache_StoreSkipsFailedEnvelopes(t *testing.T) {
	t.Parallel()

	store := newFakeSearchStore()
	wb := NewWriteback(1, 8)
	c := NewSearchCache(store, testCacheConfig(), metrics.NewCollector(), wb)

	env := &models.SearchEnvelope{Success: false, Provider: "googlebooks", Query: "tintin"}
	c.Store(context.Background(), "googlebooks", "search", "tintin", nil, env, nil)
	wb.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saves) != 0 {
		t.Errorf("saves = %v, want failed envelope dropped by default", store.saves)
	}
}

func TestSearchCache_StoreFailedWhenConfigured(t *testing.T) {
	t.Parallel()

	store := newFakeSearchStore()
	wb := NewWriteback(1, 8)
	cfg := testCacheConfig()
	cfg.CacheAllFailed = true
	c := NewSearchCache(store, cfg, metrics.NewCollector(), wb)

	env := &models.SearchEnvelope{Success: false, Provider: "googlebooks", Query: "tintin"}
	c.Store(context.Background(), "googlebooks", "search", "tintin", nil, env, nil)
	wb.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saves) != 1 {
		t.Errorf("saves = %d, want failed envelope persisted when opted in", len(store.saves))
	}
}

func TestSearchCache_StoreNilEnvelopeIsNoop(t *testing.T) {
	t.Parallel()

	store := newFakeSearchStore()
	wb := NewWriteback(1, 8)
	c := NewSearchCache(store, testCacheConfig(), metrics.NewCollector(), wb)

	c.Store(context.Background(), "googlebooks", "search", "tintin", nil, nil, nil)
	wb.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saves) != 0 {
		t.Errorf("saves = %v, want none", store.saves)
	}
}

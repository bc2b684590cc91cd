// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fxbrun/colporteur/internal/cache"
	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/database"
	"github.com/fxbrun/colporteur/internal/metrics"
	"github.com/fxbrun/colporteur/internal/models"
)

// fakeConnector is a scriptable Provider (optionally CodeSearcher).
type fakeConnector struct {
	desc        Descriptor
	searchEnv   *models.SearchEnvelope
	detailEnv   *models.DetailEnvelope
	err         error
	searchCalls int
	detailCalls int
	codeCalls   int
	mu          sync.Mutex
}

func (f *fakeConnector) Descriptor() Descriptor { return f.desc }

func (f *fakeConnector) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	return f.searchEnv, f.err
}

func (f *fakeConnector) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()
	return f.detailEnv, f.err
}

func (f *fakeConnector) SearchByCode(ctx context.Context, code string, q Query) (*models.SearchEnvelope, error) {
	f.mu.Lock()
	f.codeCalls++
	f.mu.Unlock()
	return f.searchEnv, f.err
}

// codelessConnector lacks SearchByCode.
type codelessConnector struct {
	desc Descriptor
}

func (c *codelessConnector) Descriptor() Descriptor { return c.desc }

func (c *codelessConnector) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	return fakeSearchEnv(), nil
}

func (c *codelessConnector) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	return nil, errors.New("unused")
}

type memItemStore struct {
	mu    sync.Mutex
	items map[string]*models.Item
}

func newMemItemStore() *memItemStore {
	return &memItemStore{items: make(map[string]*models.Item)}
}

func (s *memItemStore) GetItem(ctx context.Context, source, sourceID string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[models.ItemID(source, sourceID)], nil
}

func (s *memItemStore) SaveItem(ctx context.Context, source, sourceID, itemType, name string, payload map[string]any, opts database.SaveItemOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[models.ItemID(source, sourceID)] = &models.Item{
		ID:       models.ItemID(source, sourceID),
		Source:   source,
		SourceID: sourceID,
		Type:     itemType,
		Name:     name,
		Data:     payload,
	}
	return nil
}

func (s *memItemStore) TouchItem(ctx context.Context, id string) error { return nil }

type memSearchStore struct {
	mu   sync.Mutex
	rows map[string]*database.CachedSearch
	ttls map[string]time.Duration
}

func newMemSearchStore() *memSearchStore {
	return &memSearchStore{
		rows: make(map[string]*database.CachedSearch),
		ttls: make(map[string]time.Duration),
	}
}

func (s *memSearchStore) GetCachedSearch(ctx context.Context, provider, searchType, fingerprint, rawQuery string, opts database.SearchLookupOptions) (*database.CachedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[searchType+"|"+fingerprint], nil
}

func (s *memSearchStore) SaveSearchResults(ctx context.Context, provider, searchType, fingerprint, rawQuery string, env *models.SearchEnvelope, resultIDs []string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := searchType + "|" + fingerprint
	s.rows[key] = &database.CachedSearch{Envelope: env}
	s.ttls[key] = ttl
	return nil
}

type shellFixture struct {
	shell       *Shell
	itemStore   *memItemStore
	searchStore *memSearchStore
	pool        *cache.Writeback
}

func newShellFixture(t *testing.T, p Provider, mode config.CacheMode) *shellFixture {
	t.Helper()

	cfg := &config.Config{
		Cache: config.CacheConfig{
			Mode:       mode,
			DefaultTTL: 30 * 24 * time.Hour,
			TTLOverrides: map[string]time.Duration{
				"faketag": 48 * time.Hour,
			},
			SearchTTL:           7 * 24 * time.Hour,
			SimilarityThreshold: 0.4,
		},
	}

	itemStore := newMemItemStore()
	searchStore := newMemSearchStore()
	pool := cache.NewWriteback(1, 32)
	t.Cleanup(pool.Close)

	collector := metrics.NewCollector()
	items := cache.NewItemCache(itemStore, cfg.Cache, collector, pool)
	searches := cache.NewSearchCache(searchStore, cfg.Cache, collector, pool)

	return &shellFixture{
		shell:       NewShell(p, items, searches, cfg, collector),
		itemStore:   itemStore,
		searchStore: searchStore,
		pool:        pool,
	}
}

// drain flushes the write-back queue and replaces it so later writes
// still work.
func (f *shellFixture) drain() {
	f.pool.Close()
}

func infoCtx() (context.Context, *models.CacheCallInfo) {
	info := &models.CacheCallInfo{}
	return models.WithCacheInfo(context.Background(), info), info
}

func searchResult(id, name string) map[string]any {
	return map[string]any{"id": id, "name": name}
}

func fakeSearchEnv(results ...map[string]any) *models.SearchEnvelope {
	return &models.SearchEnvelope{
		Success:  true,
		Provider: "faketag",
		Query:    "tintin",
		Total:    len(results),
		Count:    len(results),
		Data:     results,
	}
}

func TestShell_SearchHybridMissWarmsItems(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{
		desc:      Descriptor{Tag: "faketag", Type: models.TypeBook},
		searchEnv: fakeSearchEnv(searchResult("a1", "Tintin au Tibet"), searchResult("a2", "L'Etoile mysterieuse")),
	}
	f := newShellFixture(t, p, config.ModeHybrid)

	ctx, info := infoCtx()
	env, err := f.shell.Search(ctx, Query{Term: "tintin"}, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if env.Count != 2 {
		t.Errorf("Count = %d, want 2", env.Count)
	}
	if info.Hit {
		t.Error("first search must be a miss")
	}
	if info.Source != models.SourceAPI {
		t.Errorf("Source = %q, want api", info.Source)
	}

	f.drain()

	// Every result is individually cached for follow-up details calls.
	f.itemStore.mu.Lock()
	defer f.itemStore.mu.Unlock()
	for _, id := range []string{"faketag:a1", "faketag:a2"} {
		if f.itemStore.items[id] == nil {
			t.Errorf("item %s not warmed", id)
		}
	}
}

func TestShell_SearchHybridSecondCallHitsCache(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{
		desc:      Descriptor{Tag: "faketag", Type: models.TypeBook},
		searchEnv: fakeSearchEnv(searchResult("a1", "Tintin au Tibet")),
	}
	f := newShellFixture(t, p, config.ModeHybrid)

	ctx1, _ := infoCtx()
	if _, err := f.shell.Search(ctx1, Query{Term: "tintin"}, false); err != nil {
		t.Fatalf("first Search: %v", err)
	}
	f.drain()

	ctx2, info := infoCtx()
	env, err := f.shell.Search(ctx2, Query{Term: "tintin"}, false)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if !info.Hit || info.Source != models.SourceSearchCache {
		t.Errorf("second search: hit=%v source=%q, want search-cache hit", info.Hit, info.Source)
	}
	if env.Count != 1 {
		t.Errorf("Count = %d, want 1", env.Count)
	}
	if p.searchCalls != 1 {
		t.Errorf("upstream called %d times, want 1", p.searchCalls)
	}
}

func TestShell_SearchForceRefreshSkipsCacheRead(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{
		desc:      Descriptor{Tag: "faketag", Type: models.TypeBook},
		searchEnv: fakeSearchEnv(searchResult("a1", "Tintin au Tibet")),
	}
	f := newShellFixture(t, p, config.ModeHybrid)

	ctx1, _ := infoCtx()
	if _, err := f.shell.Search(ctx1, Query{Term: "tintin"}, false); err != nil {
		t.Fatalf("first Search: %v", err)
	}
	f.drain()

	ctx2, info := infoCtx()
	if _, err := f.shell.Search(ctx2, Query{Term: "tintin"}, true); err != nil {
		t.Fatalf("refresh Search: %v", err)
	}
	if info.Hit {
		t.Error("forceRefresh must bypass the cache read")
	}
	if p.searchCalls != 2 {
		t.Errorf("upstream called %d times, want 2", p.searchCalls)
	}
}

func TestShell_SearchAPIOnlyNeverTouchesStore(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{
		desc:      Descriptor{Tag: "faketag", Type: models.TypeBook},
		searchEnv: fakeSearchEnv(searchResult("a1", "Tintin au Tibet")),
	}
	f := newShellFixture(t, p, config.ModeAPIOnly)

	ctx, info := infoCtx()
	if _, err := f.shell.Search(ctx, Query{Term: "tintin"}, false); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if info.Source != models.SourceAPIOnly {
		t.Errorf("Source = %q, want api_only", info.Source)
	}
	f.drain()

	f.searchStore.mu.Lock()
	rows := len(f.searchStore.rows)
	f.searchStore.mu.Unlock()
	f.itemStore.mu.Lock()
	items := len(f.itemStore.items)
	f.itemStore.mu.Unlock()
	if rows != 0 || items != 0 {
		t.Errorf("api_only persisted rows=%d items=%d, want none", rows, items)
	}
}

func TestShell_SearchDBOnlyMiss(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{desc: Descriptor{Tag: "faketag", Type: models.TypeBook}}
	f := newShellFixture(t, p, config.ModeDBOnly)

	ctx, _ := infoCtx()
	_, err := f.shell.Search(ctx, Query{Term: "tintin"}, false)
	if !errors.Is(err, ErrNotCached) {
		t.Fatalf("err = %v, want ErrNotCached", err)
	}
	if p.searchCalls != 0 {
		t.Error("db_only must never consult upstream")
	}
}

func TestShell_SearchDBOnlyServesStale(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{desc: Descriptor{Tag: "faketag", Type: models.TypeBook}}
	f := newShellFixture(t, p, config.ModeDBOnly)

	// Pre-populate the store directly.
	env := fakeSearchEnv(searchResult("a1", "Tintin au Tibet"))
	fp := cache.Fingerprint("tintin", Query{Term: "tintin"}.params())
	f.searchStore.rows["search|"+fp] = &database.CachedSearch{Envelope: env}

	ctx, info := infoCtx()
	got, err := f.shell.Search(ctx, Query{Term: "tintin"}, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("Count = %d, want 1", got.Count)
	}
	if !info.Hit || info.Source != models.SourceDBOnly || !info.Stale {
		t.Errorf("info = %+v, want stale db_only hit", info)
	}
}

func TestShell_SearchUpstreamErrorPropagates(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{
		desc: Descriptor{Tag: "faketag", Type: models.TypeBook},
		err:  errors.New("boom"),
	}
	f := newShellFixture(t, p, config.ModeHybrid)

	ctx, _ := infoCtx()
	if _, err := f.shell.Search(ctx, Query{Term: "tintin"}, false); err == nil {
		t.Fatal("expected upstream error")
	}
	f.drain()

	// Failed searches are never cached.
	f.searchStore.mu.Lock()
	defer f.searchStore.mu.Unlock()
	if len(f.searchStore.rows) != 0 {
		t.Error("failed search must not be persisted")
	}
}

func TestShell_GetDetailsHybridHit(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{
		desc: Descriptor{Tag: "faketag", Type: models.TypeBook},
		detailEnv: &models.DetailEnvelope{
			Success:  true,
			Provider: "faketag",
			ID:       "a1",
			Data:     map[string]any{"id": "a1", "name": "Tintin au Tibet"},
		},
	}
	f := newShellFixture(t, p, config.ModeHybrid)

	ctx1, _ := infoCtx()
	if _, err := f.shell.GetDetails(ctx1, "a1", Query{}, false); err != nil {
		t.Fatalf("first GetDetails: %v", err)
	}
	f.drain()

	ctx2, info := infoCtx()
	env, err := f.shell.GetDetails(ctx2, "a1", Query{}, false)
	if err != nil {
		t.Fatalf("second GetDetails: %v", err)
	}
	if !info.Hit || info.Source != models.SourceCache {
		t.Errorf("info = %+v, want item-cache hit", info)
	}
	if env.Data["name"] != "Tintin au Tibet" {
		t.Errorf("Data round-trip lost the payload: %+v", env.Data)
	}
	if p.detailCalls != 1 {
		t.Errorf("upstream called %d times, want 1", p.detailCalls)
	}
}

func TestShell_GetDetailsDBOnlyMiss(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{desc: Descriptor{Tag: "faketag", Type: models.TypeBook}}
	f := newShellFixture(t, p, config.ModeDBOnly)

	ctx, _ := infoCtx()
	if _, err := f.shell.GetDetails(ctx, "nope", Query{}, false); !errors.Is(err, ErrNotCached) {
		t.Fatalf("err = %v, want ErrNotCached", err)
	}
}

func TestShell_SearchByCodeUnsupported(t *testing.T) {
	t.Parallel()

	p := &codelessConnector{desc: Descriptor{Tag: "faketag", Type: models.TypeBook}}
	f := newShellFixture(t, p, config.ModeHybrid)

	ctx, _ := infoCtx()
	if _, err := f.shell.SearchByCode(ctx, "9782203001010", Query{}); !errors.Is(err, ErrCodeUnsupported) {
		t.Fatalf("err = %v, want ErrCodeUnsupported", err)
	}
}

func TestShell_SearchByCodeCachedUnderItemTTL(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{
		desc:      Descriptor{Tag: "faketag", Type: models.TypeBook},
		searchEnv: fakeSearchEnv(searchResult("a1", "Tintin au Tibet")),
	}
	f := newShellFixture(t, p, config.ModeHybrid)

	ctx, _ := infoCtx()
	if _, err := f.shell.SearchByCode(ctx, "9782203001010", Query{}); err != nil {
		t.Fatalf("SearchByCode: %v", err)
	}
	f.drain()

	f.searchStore.mu.Lock()
	defer f.searchStore.mu.Unlock()
	if len(f.searchStore.ttls) != 1 {
		t.Fatalf("stored %d rows, want 1", len(f.searchStore.ttls))
	}
	for _, ttl := range f.searchStore.ttls {
		// The provider's item TTL (48h override), not the search TTL.
		if ttl != 48*time.Hour {
			t.Errorf("ttl = %v, want the item TTL override", ttl)
		}
	}
}

func TestShell_WarmItemsSkipsAnonymousResults(t *testing.T) {
	t.Parallel()

	p := &fakeConnector{
		desc: Descriptor{Tag: "faketag", Type: models.TypeBook},
		searchEnv: fakeSearchEnv(
			searchResult("a1", "Named"),
			// No name and no id results are skipped; a numeric id from
			// loosely-typed JSON is coerced.
			map[string]any{"id": "a2"},
			map[string]any{"name": "NoID"},
			map[string]any{"id": 7, "name": "Numeric"},
		),
	}
	f := newShellFixture(t, p, config.ModeHybrid)

	ctx, _ := infoCtx()
	if _, err := f.shell.Search(ctx, Query{Term: "x"}, false); err != nil {
		t.Fatalf("Search: %v", err)
	}
	f.drain()

	f.itemStore.mu.Lock()
	defer f.itemStore.mu.Unlock()
	if len(f.itemStore.items) != 2 {
		t.Errorf("warmed %d items, want 2 (named string id + numeric id)", len(f.itemStore.items))
	}
	if f.itemStore.items["faketag:a1"] == nil {
		t.Error("faketag:a1 missing")
	}
	if f.itemStore.items["faketag:7"] == nil {
		t.Error("numeric id not coerced to faketag:7")
	}
}

func TestScalarID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{float64(42), "42"},
		{float64(1.5), "1.5"},
		{7, "7"},
		{nil, ""},
		{[]any{"x"}, ""},
	}
	for _, tc := range cases {
		if got := scalarID(tc.in); got != tc.want {
			t.Errorf("scalarID(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

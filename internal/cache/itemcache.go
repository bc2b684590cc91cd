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

// ItemStore is the slice of the storage layer the item cache consumes.
// Implemented by *database.DB; tests substitute fakes.
type ItemStore interface {
	GetItem(ctx context.Context, source, sourceID string) (*models.Item, error)
	SaveItem(ctx context.Context, source, sourceID, itemType, name string, payload map[string]any, opts database.SaveItemOptions) error
	TouchItem(ctx context.Context, id string) error
}

// ItemCache is the per-item read/write cache keyed by (source, sourceId).
//
// Storage errors never propagate: a failed read is a miss, a failed write
// is a lost write. Both are logged and counted, and the request proceeds.
type ItemCache struct {
	store     ItemStore
	cfg       config.CacheConfig
	collector *metrics.Collector
	pool      *Writeback
}

// NewItemCache wires the item cache over a store and the shared
// write-back pool.
func NewItemCache(store ItemStore, cfg config.CacheConfig, collector *metrics.Collector, pool *Writeback) *ItemCache {
	return &ItemCache{store: store, cfg: cfg, collector: collector, pool: pool}
}

// Get returns the cached item or nil on miss. On hit the access counters
// are bumped fire-and-forget and a cache hit is recorded.
func (c *ItemCache) Get(ctx context.Context, source, sourceID string) *models.Item {
	item, err := c.store.GetItem(ctx, source, sourceID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("source", source).Msg("item cache read failed")
		c.collector.RecordCacheMiss(source, "item")
		return nil
	}
	if item == nil {
		c.collector.RecordCacheMiss(source, "item")
		return nil
	}

	c.collector.RecordCacheHit(source, "item")
	id := item.ID
	c.pool.Submit("touch:"+id, func(ctx context.Context) error {
		return c.store.TouchItem(ctx, id)
	})
	return item
}

// SaveOptions carries the optional knobs of Save.
type SaveOptions struct {
	// TTL overrides the per-provider policy when positive.
	TTL     time.Duration
	Subtype string
	// NameOriginal preserves the untranslated display name.
	NameOriginal string
}

// Save enqueues an upsert of one item, resolving the TTL from the
// per-provider policy table. Invalid inputs are rejected up front;
// storage failures surface only in logs.
func (c *ItemCache) Save(ctx context.Context, source, sourceID, itemType, name string, payload map[string]any, opts SaveOptions) {
	if source == "" || sourceID == "" || len(payload) == 0 {
		logging.Ctx(ctx).Debug().
			Str("source", source).
			Str("source_id", sourceID).
			Msg("skipping item write with empty identity or payload")
		return
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.cfg.TTLFor(source)
	}

	c.collector.RecordNewItem(source)
	c.pool.Submit("item:"+models.ItemID(source, sourceID), func(ctx context.Context) error {
		return c.store.SaveItem(ctx, source, sourceID, itemType, name, payload, database.SaveItemOptions{
			TTL:          ttl,
			Subtype:      opts.Subtype,
			NameOriginal: opts.NameOriginal,
		})
	})
}

// SaveNow upserts synchronously. The background refresher uses it so a
// refresh cycle observes its own writes.
func (c *ItemCache) SaveNow(ctx context.Context, source, sourceID, itemType, name string, payload map[string]any, opts SaveOptions) error {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.cfg.TTLFor(source)
	}
	return c.store.SaveItem(ctx, source, sourceID, itemType, name, payload, database.SaveItemOptions{
		TTL:          ttl,
		Subtype:      opts.Subtype,
		NameOriginal: opts.NameOriginal,
	})
}

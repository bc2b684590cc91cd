// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package metrics

import (
	"context"
	"time"

	"github.com/fxbrun/colporteur/internal/database"
	"github.com/fxbrun/colporteur/internal/logging"
)

// StatsStore persists drained counter deltas. Implemented by *database.DB.
type StatsStore interface {
	UpsertDailyStats(ctx context.Context, d database.DailyStats) error
}

// Flusher periodically drains the collector into the daily stats table.
// It implements suture.Service and runs under the application supervisor.
type Flusher struct {
	store     StatsStore
	collector *Collector
	interval  time.Duration
}

// NewFlusher creates a flusher draining collector into store every
// interval.
func NewFlusher(store StatsStore, collector *Collector, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Flusher{store: store, collector: collector, interval: interval}
}

// Serve runs the flush loop until the context is canceled. A final flush
// runs on shutdown so counters from the last partial interval are not
// lost.
func (f *Flusher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			f.flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			f.flush(ctx)
		}
	}
}

func (f *Flusher) flush(ctx context.Context) {
	for source, stats := range f.collector.Drain() {
		err := f.store.UpsertDailyStats(ctx, database.DailyStats{
			Source:       source,
			APICalls:     stats.Requests,
			CacheHits:    stats.Cached,
			CacheMisses:  stats.Misses,
			NewItems:     stats.NewItems,
			Searches:     stats.Searches,
			AvgAPITimeMS: stats.AvgAPITimeMS,
		})
		if err != nil {
			// Telemetry must never break anything; log and move on.
			logging.Warn().Err(err).Str("source", source).Msg("stats flush failed")
		}
	}
}

func (f *Flusher) String() string { return "metrics.flusher" }

// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package database

import (
	"context"
	"fmt"
	"time"
)

// DailyStats is one per-provider row of the daily telemetry rollup.
type DailyStats struct {
	Date         time.Time `json:"date"`
	Source       string    `json:"source"`
	APICalls     int       `json:"apiCalls"`
	CacheHits    int       `json:"cacheHits"`
	CacheMisses  int       `json:"cacheMisses"`
	NewItems     int       `json:"newItems"`
	Searches     int       `json:"searches"`
	AvgAPITimeMS float64   `json:"avgApiTimeMs"`
}

// UpsertDailyStats folds a delta of counters into today's row for one
// provider. The latency column is maintained as a running average weighted
// by api_calls so that flush intervals of any size combine correctly.
func (db *DB) UpsertDailyStats(ctx context.Context, d DailyStats) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO stats (date, source, api_calls, cache_hits, cache_misses,
			new_items, searches, avg_api_time_ms)
		VALUES (CURRENT_DATE, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date, source) DO UPDATE SET
			api_calls = stats.api_calls + EXCLUDED.api_calls,
			cache_hits = stats.cache_hits + EXCLUDED.cache_hits,
			cache_misses = stats.cache_misses + EXCLUDED.cache_misses,
			new_items = stats.new_items + EXCLUDED.new_items,
			searches = stats.searches + EXCLUDED.searches,
			avg_api_time_ms = CASE
				WHEN stats.api_calls + EXCLUDED.api_calls = 0 THEN 0
				ELSE (stats.avg_api_time_ms * stats.api_calls
					+ EXCLUDED.avg_api_time_ms * EXCLUDED.api_calls)
					/ (stats.api_calls + EXCLUDED.api_calls)
			END`,
		d.Source, d.APICalls, d.CacheHits, d.CacheMisses,
		d.NewItems, d.Searches, d.AvgAPITimeMS,
	)
	if err != nil {
		return fmt.Errorf("upsert daily stats for %s: %w", d.Source, err)
	}
	return nil
}

// TodayStats returns today's rollup rows for every provider.
func (db *DB) TodayStats(ctx context.Context) ([]DailyStats, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT date, source, api_calls, cache_hits, cache_misses,
		       new_items, searches, avg_api_time_ms
		FROM stats WHERE date = CURRENT_DATE ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("select today stats: %w", err)
	}
	defer rows.Close()

	var out []DailyStats
	for rows.Next() {
		var d DailyStats
		if err := rows.Scan(&d.Date, &d.Source, &d.APICalls, &d.CacheHits,
			&d.CacheMisses, &d.NewItems, &d.Searches, &d.AvgAPITimeMS); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

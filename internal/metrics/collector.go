// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package metrics

import (
	"sync"
	"time"
)

// SourceStats is the per-provider counter snapshot exposed by /stats and
// drained into the daily rollup.
type SourceStats struct {
	Requests     int     `json:"requests"`
	Errors       int     `json:"errors"`
	Cached       int     `json:"cached"`
	Misses       int     `json:"misses"`
	NewItems     int     `json:"newItems"`
	Searches     int     `json:"searches"`
	AvgAPITimeMS float64 `json:"avgApiTimeMs"`
}

type sourceCounters struct {
	requests       int
	errors         int
	cached         int
	misses         int
	newItems       int
	searches       int
	totalAPITimeMS float64
}

func (c *sourceCounters) avg() float64 {
	if c.requests == 0 {
		return 0
	}
	return c.totalAPITimeMS / float64(c.requests)
}

// Collector accumulates per-provider counters since process start (or the
// last drain). All methods are safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	sources map[string]*sourceCounters
	started time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		sources: make(map[string]*sourceCounters),
		started: time.Now(),
	}
}

func (c *Collector) counters(source string) *sourceCounters {
	sc, ok := c.sources[source]
	if !ok {
		sc = &sourceCounters{}
		c.sources[source] = sc
	}
	return sc
}

// RecordRequest counts one upstream call and its latency.
func (c *Collector) RecordRequest(source string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(source).Inc()
	UpstreamDuration.WithLabelValues(source).Observe(duration.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.counters(source)
	sc.requests++
	sc.totalAPITimeMS += float64(duration.Milliseconds())
}

// RecordError counts one failed upstream call.
func (c *Collector) RecordError(source string) {
	UpstreamErrors.WithLabelValues(source).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters(source).errors++
}

// RecordCacheHit counts one cache hit on the given layer ("item" or
// "search").
func (c *Collector) RecordCacheHit(source, layer string) {
	CacheHits.WithLabelValues(source, layer).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters(source).cached++
}

// RecordCacheMiss counts one cache miss on the given layer.
func (c *Collector) RecordCacheMiss(source, layer string) {
	CacheMisses.WithLabelValues(source, layer).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters(source).misses++
}

// RecordNewItem counts one item written back after an upstream fetch.
func (c *Collector) RecordNewItem(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters(source).newItems++
}

// RecordSearch counts one search request dispatched to a provider.
func (c *Collector) RecordSearch(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters(source).searches++
}

// Snapshot returns a copy of the current counters keyed by provider.
func (c *Collector) Snapshot() map[string]SourceStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]SourceStats, len(c.sources))
	for source, sc := range c.sources {
		out[source] = SourceStats{
			Requests:     sc.requests,
			Errors:       sc.errors,
			Cached:       sc.cached,
			Misses:       sc.misses,
			NewItems:     sc.newItems,
			Searches:     sc.searches,
			AvgAPITimeMS: sc.avg(),
		}
	}
	return out
}

// Drain returns the accumulated counters and resets them. Used by the
// stats flusher so that each flush carries only the delta since the last.
func (c *Collector) Drain() map[string]SourceStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]SourceStats, len(c.sources))
	for source, sc := range c.sources {
		out[source] = SourceStats{
			Requests:     sc.requests,
			Errors:       sc.errors,
			Cached:       sc.cached,
			Misses:       sc.misses,
			NewItems:     sc.newItems,
			Searches:     sc.searches,
			AvgAPITimeMS: sc.avg(),
		}
	}
	c.sources = make(map[string]*sourceCounters)
	return out
}

// Reset discards every counter. Exposed through DELETE /metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = make(map[string]*sourceCounters)
	c.started = time.Now()
}

// Since reports when the collector last started counting.
func (c *Collector) Since() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

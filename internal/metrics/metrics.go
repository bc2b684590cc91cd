// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package metrics provides Prometheus instrumentation plus the in-process
// per-provider counters that feed the persisted daily stats rollup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream call metrics.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colporteur_upstream_requests_total",
			Help: "Total number of upstream provider API calls",
		},
		[]string{"source"},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colporteur_upstream_errors_total",
			Help: "Total number of failed upstream provider API calls",
		},
		[]string{"source"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colporteur_upstream_duration_seconds",
			Help:    "Duration of upstream provider API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Cache metrics, split by layer (item vs search).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colporteur_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"source", "layer"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colporteur_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"source", "layer"},
	)

	// Write-back pool metrics.
	WritebackQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "colporteur_writeback_queued_total",
			Help: "Total number of cache writes submitted to the write-back pool",
		},
	)

	WritebackDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "colporteur_writeback_dropped_total",
			Help: "Total number of cache writes dropped under back-pressure",
		},
	)

	// Anti-bot proxy session metrics.
	ProxySessionCreations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "colporteur_proxy_session_creations_total",
			Help: "Total number of anti-bot proxy sessions created",
		},
	)

	ProxySessionRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "colporteur_proxy_session_rotations_total",
			Help: "Total number of proxy sessions destroyed after failures",
		},
	)

	// Circuit breaker state: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "colporteur_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colporteur_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Background refresher metrics.
	RefreshCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "colporteur_refresh_cycles_total",
			Help: "Total number of background refresh cycles",
		},
	)

	RefreshedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colporteur_refreshed_items_total",
			Help: "Total number of items proactively refreshed",
		},
		[]string{"source", "outcome"},
	)
)

// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package config provides layered configuration management for Colporteur.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: COLPORTEUR_* plus a set of legacy flat names
//     (DATABASE_URL, CACHE_MODE, PORT, FSR_BASE, *_API_KEY, ...)
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"time"
)

// CacheMode selects how the storage layer participates in the read path.
type CacheMode string

const (
	// ModeAPIOnly bypasses the cache entirely: reads return nothing,
	// writes are no-ops.
	ModeAPIOnly CacheMode = "api_only"

	// ModeHybrid is the default read-through + write-back behavior.
	ModeHybrid CacheMode = "hybrid"

	// ModeDBOnly serves exclusively from the cache; upstream fetches are
	// skipped and stale rows may be returned.
	ModeDBOnly CacheMode = "db_only"
)

// Valid reports whether the mode is one of the three known values.
func (m CacheMode) Valid() bool {
	switch m {
	case ModeAPIOnly, ModeHybrid, ModeDBOnly:
		return true
	}
	return false
}

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Fetch    FetchConfig    `koanf:"fetch"`
	Proxy    ProxyConfig    `koanf:"proxy"`
	Refresh  RefreshConfig  `koanf:"refresh"`
	AutoTrad AutoTradConfig `koanf:"autotrad"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`

	// APIKeys maps a provider tag to its upstream API key. Populated from
	// the config file or from <TAG>_API_KEY environment variables.
	APIKeys map[string]string `koanf:"api_keys"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	Enabled           bool          `koanf:"enabled"`
	URL               string        `koanf:"url"`
	MaxConns          int32         `koanf:"max_conns"`
	MinConns          int32         `koanf:"min_conns"`
	HealthCheckPeriod time.Duration `koanf:"health_check_period"`
	ConnectTimeout    time.Duration `koanf:"connect_timeout"`
}

// CacheConfig holds the cache-engine policy knobs.
type CacheConfig struct {
	Mode CacheMode `koanf:"mode"`

	// DefaultTTL applies to any provider without an override.
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// TTLOverrides maps a provider tag to its item TTL.
	TTLOverrides map[string]time.Duration `koanf:"ttl_overrides"`

	// SearchTTL is the lifetime of cached search envelopes.
	SearchTTL time.Duration `koanf:"search_ttl"`

	// SimilarityThreshold is the minimum trigram score for a fuzzy
	// search-cache hit.
	SimilarityThreshold float64 `koanf:"similarity_threshold"`

	// WritebackWorkers and WritebackQueueSize bound the fire-and-forget
	// write pool. When the queue is full the oldest pending write is
	// dropped (writes are lossy by design).
	WritebackWorkers   int `koanf:"writeback_workers"`
	WritebackQueueSize int `koanf:"writeback_queue_size"`

	// CacheAllFailed controls whether unsuccessful envelopes (including
	// fan-out branches in which every source errored) are persisted.
	// Off by default.
	CacheAllFailed bool `koanf:"cache_all_failed"`
}

// TTLFor resolves the item TTL for a provider tag.
func (c CacheConfig) TTLFor(source string) time.Duration {
	if ttl, ok := c.TTLOverrides[source]; ok {
		return ttl
	}
	return c.DefaultTTL
}

// FetchConfig holds upstream HTTP client settings.
type FetchConfig struct {
	UserAgent    string        `koanf:"user_agent"`
	JSONTimeout  time.Duration `koanf:"json_timeout"`
	ProxyTimeout time.Duration `koanf:"proxy_timeout"`
	MaxRetries   int           `koanf:"max_retries"`
	RetryDelay   time.Duration `koanf:"retry_delay"`
}

// ProxyConfig holds the anti-bot proxy service settings (FlareSolverr-style).
type ProxyConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
	// SessionTTL caps how long one proxy session is reused before rotation.
	SessionTTL time.Duration `koanf:"session_ttl"`
}

// RefreshConfig holds the background stale-popular refresher settings.
type RefreshConfig struct {
	Enabled       bool          `koanf:"enabled"`
	CheckInterval time.Duration `koanf:"check_interval"`
	MaxPerCycle   int           `koanf:"max_per_cycle"`
	Delay         time.Duration `koanf:"delay"`
	// Window is how far before expiry an item becomes refresh-eligible.
	Window time.Duration `koanf:"window"`
	// Concurrency bounds parallel refresh fetches within one cycle.
	Concurrency int `koanf:"concurrency"`
}

// AutoTradConfig points at the opaque translation micro-service.
type AutoTradConfig struct {
	URL string `koanf:"url"`
}

// MetricsConfig holds telemetry settings.
type MetricsConfig struct {
	Enabled       bool          `koanf:"enabled"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// APIKey returns the configured key for a provider tag, or "".
func (c *Config) APIKey(source string) string {
	return c.APIKeys[source]
}

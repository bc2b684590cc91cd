// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/colporteur/config.yaml",
	"/etc/colporteur/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

const day = 24 * time.Hour

// defaultConfig returns a Config with all default values. These are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:           true,
			URL:               "",
			MaxConns:          10,
			MinConns:          2,
			HealthCheckPeriod: time.Minute,
			ConnectTimeout:    10 * time.Second,
		},
		Cache: CacheConfig{
			Mode:       ModeHybrid,
			DefaultTTL: 30 * day,
			TTLOverrides: map[string]time.Duration{
				// Near-immutable catalogs.
				"lego":        90 * day,
				"bedetheque":  90 * day,
				"playmobil":   90 * day,
				"mega":        90 * day,
				"klickypedia": 90 * day,
				// Slowly-changing catalogs.
				"googlebooks":       30 * day,
				"openlibrary":       30 * day,
				"comicvine":         30 * day,
				"mangadex":          30 * day,
				"coleka":            30 * day,
				"luluberlu":         30 * day,
				"transformerland":   30 * day,
				"paninimania":       30 * day,
				"consolevariations": 30 * day,
				// Actively-edited catalogs.
				"tmdb":       7 * day,
				"tvdb":       7 * day,
				"rawg":       7 * day,
				"igdb":       7 * day,
				"jikan":      7 * day,
				"jeuxvideo":  7 * day,
				"music":      7 * day,
				"itunes":     7 * day,
				"deezer":     7 * day,
				"boardgames": 7 * day,
				// Volatile.
				"imdb":   1 * day,
				"amazon": 10 * time.Minute, // price volatility
			},
			SearchTTL:           7 * day,
			SimilarityThreshold: 0.4,
			WritebackWorkers:    4,
			WritebackQueueSize:  512,
			CacheAllFailed:      false,
		},
		Fetch: FetchConfig{
			UserAgent:    "Colporteur/1.0 (+https://github.com/fxbrun/colporteur)",
			JSONTimeout:  15 * time.Second,
			ProxyTimeout: 40 * time.Second,
			MaxRetries:   3,
			RetryDelay:   time.Second,
		},
		Proxy: ProxyConfig{
			Enabled:    false,
			BaseURL:    "",
			SessionTTL: 30 * time.Minute,
		},
		Refresh: RefreshConfig{
			Enabled:       false,
			CheckInterval: 10 * time.Minute,
			MaxPerCycle:   20,
			Delay:         2 * time.Second,
			Window:        2 * day,
			Concurrency:   2,
		},
		AutoTrad: AutoTradConfig{URL: ""},
		Metrics: MetricsConfig{
			Enabled:       true,
			FlushInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		APIKeys: map[string]string{},
	}
}

// Load loads configuration using Koanf v2 with layered sources
// (highest priority wins): environment > config file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// legacyEnvMap maps flat legacy environment variable names to koanf paths.
// These predate the nested COLPORTEUR_* scheme and are kept for
// deployments that still export them.
var legacyEnvMap = map[string]string{
	"PORT":              "server.port",
	"HOST":              "server.host",
	"DATABASE_URL":      "database.url",
	"DB_ENABLED":        "database.enabled",
	"CACHE_MODE":        "cache.mode",
	"CACHE_ALL_FAILED":  "cache.cache_all_failed",
	"FSR_BASE":          "proxy.base_url",
	"AUTO_TRAD_URL":     "autotrad.url",
	"ENABLE_MONITORING": "metrics.enabled",
	"ENABLE_REFRESH":    "refresh.enabled",
	"LOG_LEVEL":         "logging.level",
	"LOG_FORMAT":        "logging.format",
	"MAX_RETRIES":       "fetch.max_retries",
}

// envTransformFunc transforms environment variable names to koanf paths.
//
// Three families are understood:
//   - legacy flat names: DATABASE_URL -> database.url, CACHE_MODE -> cache.mode
//   - provider API keys: GOOGLEBOOKS_API_KEY -> api_keys.googlebooks
//   - nested names: COLPORTEUR_CACHE_SEARCH_TTL -> cache.search_ttl
//
// Everything else is dropped so that unrelated environment noise never
// leaks into the configuration.
func envTransformFunc(key string) string {
	if path, ok := legacyEnvMap[key]; ok {
		return path
	}

	if tag, ok := strings.CutSuffix(key, "_API_KEY"); ok && tag != "" {
		return "api_keys." + strings.ToLower(tag)
	}

	if rest, ok := strings.CutPrefix(key, "COLPORTEUR_"); ok {
		rest = strings.ToLower(rest)
		// First segment is the section, the rest is the field.
		if section, field, found := strings.Cut(rest, "_"); found {
			return section + "." + field
		}
		return rest
	}

	return ""
}

// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for coherence and normalizes a few
// derived settings. It is called once by Load; the Config is immutable
// afterwards.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}

	if !c.Cache.Mode.Valid() {
		return fmt.Errorf("cache.mode must be one of api_only, hybrid, db_only, got %q", c.Cache.Mode)
	}

	if c.Database.Enabled && c.Cache.Mode != ModeAPIOnly {
		if c.Database.URL == "" {
			return fmt.Errorf("database.url (DATABASE_URL) is required when the cache is enabled")
		}
		if err := validatePostgresURL(c.Database.URL); err != nil {
			return err
		}
	}
	if !c.Database.Enabled {
		// Without a database the only coherent mode is api_only.
		c.Cache.Mode = ModeAPIOnly
	}

	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in [0, 1], got %f", c.Cache.SimilarityThreshold)
	}
	if c.Cache.WritebackWorkers < 1 {
		c.Cache.WritebackWorkers = 1
	}
	if c.Cache.WritebackQueueSize < 1 {
		c.Cache.WritebackQueueSize = 64
	}

	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0, got %d", c.Fetch.MaxRetries)
	}

	// A configured proxy base URL implies the proxy service is in use.
	if c.Proxy.BaseURL != "" {
		c.Proxy.Enabled = true
	}
	if c.Proxy.Enabled && c.Proxy.BaseURL == "" {
		return fmt.Errorf("proxy.base_url (FSR_BASE) is required when the proxy is enabled")
	}

	if c.Refresh.Enabled {
		if c.Refresh.MaxPerCycle < 1 {
			return fmt.Errorf("refresh.max_per_cycle must be >= 1, got %d", c.Refresh.MaxPerCycle)
		}
		if c.Refresh.Concurrency < 1 {
			c.Refresh.Concurrency = 1
		}
	}

	return nil
}

func validatePostgresURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("database.url is not a valid URL: %w", err)
	}
	if !strings.HasPrefix(u.Scheme, "postgres") {
		return fmt.Errorf("database.url must use a postgres:// scheme, got %q", u.Scheme)
	}
	return nil
}

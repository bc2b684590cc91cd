// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package provider

import (
	"fmt"
	"sort"

	"github.com/fxbrun/colporteur/internal/cache"
	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/metrics"
)

// Registry maps provider tags to their cache-wrapped shells. Built once
// at startup, read-only afterwards.
type Registry struct {
	shells  map[string]*Shell
	limiter *fetch.Limiter
}

// NewRegistry builds an empty registry sharing one rate limiter across
// all providers.
func NewRegistry(limiter *fetch.Limiter) *Registry {
	return &Registry{
		shells:  make(map[string]*Shell),
		limiter: limiter,
	}
}

// Register wraps a connector in the caching shell and installs its rate
// limit. Duplicate tags are a programming error.
func (r *Registry) Register(p Provider, items *cache.ItemCache, searches *cache.SearchCache, cfg *config.Config, collector *metrics.Collector) error {
	d := p.Descriptor()
	if d.Tag == "" {
		return fmt.Errorf("provider with empty tag")
	}
	if _, dup := r.shells[d.Tag]; dup {
		return fmt.Errorf("provider %q registered twice", d.Tag)
	}
	if d.MinInterval > 0 {
		r.limiter.SetMinInterval(d.Tag, d.MinInterval)
	}
	r.shells[d.Tag] = NewShell(p, items, searches, cfg, collector)
	return nil
}

// Get returns the shell for a tag, or nil when unknown.
func (r *Registry) Get(tag string) *Shell {
	return r.shells[tag]
}

// Tags returns all registered provider tags, sorted.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.shells))
	for tag := range r.shells {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// TagsByType returns the tags of providers producing the given item
// type, sorted. Used by the multi-source fan-out.
func (r *Registry) TagsByType(itemType string) []string {
	var tags []string
	for tag, sh := range r.shells {
		if sh.Descriptor().Type == itemType {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

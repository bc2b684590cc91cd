// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package models

import (
	"context"
	"time"
)

// CacheSource identifies where a response was resolved from.
type CacheSource string

const (
	SourceCache       CacheSource = "cache"
	SourceSearchCache CacheSource = "search_cache"
	SourceAPI         CacheSource = "api"
	SourceAPIOnly     CacheSource = "api_only"
	SourceDBOnly      CacheSource = "db_only"
)

// CacheCallInfo is the request-scoped record of how the cache behaved for
// one handler invocation. The provider shell mutates it in place; the API
// layer reads it back into the X-Cache response headers.
//
// A fresh handle is attached to every request context by the API layer.
// Threading it through the context (instead of a process-wide variable)
// keeps concurrent requests from trampling each other's telemetry.
type CacheCallInfo struct {
	Hit      bool
	Source   CacheSource
	Duration time.Duration
	Stale    bool
}

// Reset clears the handle back to its zero state.
func (c *CacheCallInfo) Reset() {
	c.Hit = false
	c.Source = ""
	c.Duration = 0
	c.Stale = false
}

type cacheInfoKey struct{}

// WithCacheInfo attaches a CacheCallInfo handle to the context.
func WithCacheInfo(ctx context.Context, info *CacheCallInfo) context.Context {
	return context.WithValue(ctx, cacheInfoKey{}, info)
}

// CacheInfoFrom returns the handle attached to the context, or nil.
func CacheInfoFrom(ctx context.Context) *CacheCallInfo {
	info, _ := ctx.Value(cacheInfoKey{}).(*CacheCallInfo)
	return info
}

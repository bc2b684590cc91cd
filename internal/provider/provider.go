// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package provider holds the upstream connectors and the caching shell
// that wraps every one of them. A connector only knows how to talk to
// its upstream and normalize responses into the unified envelope; the
// shell layers the read-through cache, mode handling and write-back on
// top, identically for all ~40 sources.
package provider

import (
	"context"
	"time"

	"github.com/fxbrun/colporteur/internal/models"
)

// Query carries the normalized request options every connector receives.
type Query struct {
	Term string
	Page int
	Max  int
	Lang string

	// AutoTrad requests name translation through the external
	// translation service where a connector supports it.
	AutoTrad bool

	// Extra holds provider-specific parameters. They participate in the
	// search-cache fingerprint.
	Extra map[string]any
}

// params flattens the query options into the fingerprint parameter map.
func (q Query) params() map[string]any {
	p := make(map[string]any, len(q.Extra)+3)
	for k, v := range q.Extra {
		p[k] = v
	}
	if q.Page > 1 {
		p["page"] = q.Page
	}
	if q.Max > 0 {
		p["max"] = q.Max
	}
	if q.Lang != "" {
		p["lang"] = q.Lang
	}
	return p
}

// Descriptor declares a connector's static properties. The registry uses
// it to wire rate limits, API keys and routing.
type Descriptor struct {
	// Tag is the provider's URL segment and cache key prefix (e.g.
	// "googlebooks").
	Tag string

	// Type is the item type this provider produces.
	Type string

	// MinInterval spaces consecutive upstream calls. Zero means
	// unthrottled.
	MinInterval time.Duration

	// NeedsAPIKey providers fail fast with a signup hint when no key is
	// configured. KeyHint is that hint.
	NeedsAPIKey bool
	KeyHint     string

	// NeedsProxy providers fetch through the anti-bot proxy session.
	NeedsProxy bool

	// MaxResults caps the per-page result count a client may request.
	MaxResults int
}

// Provider is one upstream connector. Implementations are stateless
// beyond their HTTP client and safe for concurrent use.
type Provider interface {
	Descriptor() Descriptor

	// Search runs a free-text search and returns a normalized envelope.
	Search(ctx context.Context, q Query) (*models.SearchEnvelope, error)

	// GetDetails fetches one item by its provider-scoped id.
	GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error)
}

// CodeSearcher is implemented by connectors that can resolve a barcode
// (EAN/UPC/ISBN) directly.
type CodeSearcher interface {
	SearchByCode(ctx context.Context, code string, q Query) (*models.SearchEnvelope, error)
}

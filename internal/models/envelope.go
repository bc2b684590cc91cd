// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package models

import "time"

// Pagination describes the slice of upstream results contained in a
// search envelope.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPages,omitempty"`
}

// Meta carries the request options echoed back to the client.
type Meta struct {
	Lang     string `json:"lang,omitempty"`
	Locale   string `json:"locale,omitempty"`
	AutoTrad bool   `json:"autoTrad,omitempty"`
}

// CacheMatch annotates an envelope served from a similarity (rather than
// exact) search-cache hit so clients can surface the approximation.
type CacheMatch struct {
	Type          string  `json:"type"`
	Score         float64 `json:"score"`
	OriginalQuery string  `json:"originalQuery"`
	SearchedQuery string  `json:"searchedQuery"`
}

// SearchEnvelope is the uniform outer shape for search responses,
// identical in structure regardless of provider. It is also the value
// persisted verbatim in the search cache.
type SearchEnvelope struct {
	Success    bool             `json:"success"`
	Provider   string           `json:"provider"`
	Query      string           `json:"query"`
	Total      int              `json:"total"`
	Count      int              `json:"count"`
	Data       []map[string]any `json:"data"`
	Pagination *Pagination      `json:"pagination,omitempty"`
	Meta       Meta             `json:"meta"`
	CacheMatch *CacheMatch      `json:"cacheMatch,omitempty"`
}

// DetailEnvelope is the uniform outer shape for detail responses.
type DetailEnvelope struct {
	Success  bool           `json:"success"`
	Provider string         `json:"provider"`
	ID       string         `json:"id"`
	Data     map[string]any `json:"data"`
	Meta     Meta           `json:"meta"`
}

// SourceResult is one branch of a multi-source fan-out: either a full
// envelope or a captured error string, never both.
type SourceResult struct {
	*SearchEnvelope
	Error string `json:"error,omitempty"`
}

// MultiSearchEnvelope is the union envelope returned by multi-source
// search variants. Branches are keyed by provider tag; ordering across
// branches is irrelevant.
type MultiSearchEnvelope struct {
	Success bool                     `json:"success"`
	Query   string                   `json:"query"`
	Sources map[string]*SourceResult `json:"sources"`
	Meta    Meta                     `json:"meta"`
}

// AllFailed reports whether every branch of the fan-out errored.
func (m *MultiSearchEnvelope) AllFailed() bool {
	if len(m.Sources) == 0 {
		return true
	}
	for _, sr := range m.Sources {
		if sr.Error == "" {
			return false
		}
	}
	return true
}

// ErrorBody is the uniform error response shape.
type ErrorBody struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Hint      string    `json:"hint,omitempty"`
	Params    []string  `json:"params,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

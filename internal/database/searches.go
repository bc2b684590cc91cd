// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/models"
	"github.com/fxbrun/colporteur/internal/projection"
)

// CachedSearch is a search-cache hit: the stored envelope plus, for fuzzy
// hits, the similarity annotation.
type CachedSearch struct {
	Envelope *models.SearchEnvelope
	Match    *models.CacheMatch // nil for exact hits
}

// SearchLookupOptions tunes GetCachedSearch.
type SearchLookupOptions struct {
	// ExactMatch disables the trigram fallback.
	ExactMatch bool
	// SimilarityThreshold is the minimum trigram score for a fuzzy hit.
	SimilarityThreshold float64
}

// GetCachedSearch looks up a cached search envelope.
//
// The exact lookup keys on (fingerprint, provider, search_type) and skips
// expired rows. On miss, if the normalized query has at least three
// characters and ExactMatch is off, a trigram-similarity lookup against
// search_term_normalized runs, scoped to the same provider and type; the
// best-scoring row at or above the threshold wins and its envelope is
// annotated with the match marker.
func (db *DB) GetCachedSearch(ctx context.Context, provider, searchType, fingerprint, rawQuery string, opts SearchLookupOptions) (*CachedSearch, error) {
	if db.mode == config.ModeAPIOnly {
		return nil, nil
	}

	var cached []byte
	err := db.pool.QueryRow(ctx, `
		SELECT cached_results FROM searches
		WHERE query = $1 AND provider = $2 AND search_type = $3
		  AND (expires_at IS NULL OR expires_at > now())`,
		fingerprint, provider, searchType).Scan(&cached)
	switch {
	case err == nil:
		env, err := decodeEnvelope(cached)
		if err != nil {
			return nil, err
		}
		return &CachedSearch{Envelope: env}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("search cache lookup %s/%s: %w", provider, searchType, err)
	}

	if opts.ExactMatch {
		return nil, nil
	}
	normalized := projection.NormalizeText(rawQuery)
	if len(normalized) < 3 {
		return nil, nil
	}
	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.4
	}

	// The % operator engages the trigram GIN index at the default GUC
	// limit (0.3); the explicit threshold filter on top is the contract.
	var term string
	var score float64
	err = db.pool.QueryRow(ctx, `
		SELECT search_term, cached_results,
		       similarity(search_term_normalized, normalize_text($3)) AS score
		FROM searches
		WHERE provider = $1 AND search_type = $2
		  AND (expires_at IS NULL OR expires_at > now())
		  AND search_term_normalized % normalize_text($3)
		  AND similarity(search_term_normalized, normalize_text($3)) >= $4
		ORDER BY score DESC
		LIMIT 1`,
		provider, searchType, rawQuery, threshold).Scan(&term, &cached, &score)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search cache fuzzy lookup %s/%s: %w", provider, searchType, err)
	}

	env, err := decodeEnvelope(cached)
	if err != nil {
		return nil, err
	}
	return &CachedSearch{
		Envelope: env,
		Match: &models.CacheMatch{
			Type:          "similarity",
			Score:         score,
			OriginalQuery: term,
			SearchedQuery: rawQuery,
		},
	}, nil
}

func decodeEnvelope(cached []byte) (*models.SearchEnvelope, error) {
	var env models.SearchEnvelope
	if err := json.Unmarshal(cached, &env); err != nil {
		return nil, fmt.Errorf("corrupt cached envelope: %w", err)
	}
	return &env, nil
}

// SaveSearchResults upserts one search envelope keyed by
// (fingerprint, provider, search_type).
func (db *DB) SaveSearchResults(ctx context.Context, provider, searchType, fingerprint, rawQuery string, env *models.SearchEnvelope, resultIDs []string, ttl time.Duration) error {
	if db.mode == config.ModeAPIOnly {
		return nil
	}
	if env == nil {
		return fmt.Errorf("refusing to persist nil search envelope for %s/%s", provider, searchType)
	}

	cached, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal search envelope %s/%s: %w", provider, searchType, err)
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO searches (query, search_term, provider, search_type,
			result_ids, result_count, total_results, cached_results, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (query, provider, search_type) DO UPDATE SET
			search_term = EXCLUDED.search_term,
			result_ids = EXCLUDED.result_ids,
			result_count = EXCLUDED.result_count,
			total_results = EXCLUDED.total_results,
			cached_results = EXCLUDED.cached_results,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()`,
		fingerprint, rawQuery, provider, searchType,
		resultIDs, env.Count, env.Total, cached, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("save search %s/%s: %w", provider, searchType, err)
	}
	return nil
}

// PurgeExpiredSearches deletes search rows whose TTL elapsed.
func (db *DB) PurgeExpiredSearches(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM searches WHERE expires_at IS NOT NULL AND expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired searches: %w", err)
	}
	return tag.RowsAffected(), nil
}

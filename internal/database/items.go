// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/models"
	"github.com/fxbrun/colporteur/internal/projection"
)

// itemColumns is the canonical SELECT list for items rows. Keep in sync
// with scanItem.
const itemColumns = `id, source, source_id, type, subtype, name, name_original,
	year, authors, publisher, genres, language, tome, series_name, series_id,
	piece_count, figure_count, theme, runtime, pages, isbn, ean, imdb_id,
	image_url, thumbnail_url, source_url, detail_url, data,
	created_at, updated_at, expires_at, last_accessed, fetch_count`

func scanItem(row pgx.Row) (*models.Item, error) {
	var it models.Item
	var subtype, nameOriginal *string
	var data []byte
	err := row.Scan(
		&it.ID, &it.Source, &it.SourceID, &it.Type, &subtype, &it.Name, &nameOriginal,
		&it.Year, &it.Authors, &it.Publisher, &it.Genres, &it.Language, &it.Tome,
		&it.SeriesName, &it.SeriesID, &it.PieceCount, &it.FigureCount, &it.Theme,
		&it.Runtime, &it.Pages, &it.ISBN, &it.EAN, &it.IMDBID,
		&it.ImageURL, &it.ThumbnailURL, &it.SourceURL, &it.DetailURL, &data,
		&it.CreatedAt, &it.UpdatedAt, &it.ExpiresAt, &it.LastAccessed, &it.FetchCount,
	)
	if err != nil {
		return nil, err
	}
	if subtype != nil {
		it.Subtype = *subtype
	}
	if nameOriginal != nil {
		it.NameOriginal = *nameOriginal
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &it.Data); err != nil {
			return nil, fmt.Errorf("corrupt payload for %s: %w", it.ID, err)
		}
	}
	return &it, nil
}

// GetItem returns the cached item for (source, sourceId), or nil on miss.
//
// In hybrid mode expired rows are treated as misses. In db_only mode stale
// rows ARE returned (explicit staleness: the caller has chosen the cache
// over freshness). In api_only mode the read always misses.
func (db *DB) GetItem(ctx context.Context, source, sourceID string) (*models.Item, error) {
	if db.mode == config.ModeAPIOnly {
		return nil, nil
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	if db.mode == config.ModeHybrid {
		query += ` AND (expires_at IS NULL OR expires_at > now())`
	}

	it, err := scanItem(db.pool.QueryRow(ctx, query, models.ItemID(source, sourceID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s:%s: %w", source, sourceID, err)
	}
	return it, nil
}

// SaveItemOptions carries the optional knobs of SaveItem.
type SaveItemOptions struct {
	TTL          time.Duration // 0 means permanent
	Subtype      string
	NameOriginal string
}

// SaveItem upserts one item, recomputing every projected column from the
// payload. created_at is preserved on conflict; updated_at is bumped.
// Returns an error for nil payloads: an empty blob projects to nothing
// useful and is never persisted.
func (db *DB) SaveItem(ctx context.Context, source, sourceID, itemType, name string, payload map[string]any, opts SaveItemOptions) error {
	if db.mode == config.ModeAPIOnly {
		return nil
	}
	if len(payload) == 0 {
		return fmt.Errorf("refusing to persist empty payload for %s:%s", source, sourceID)
	}
	if name == "" {
		return fmt.Errorf("refusing to persist unnamed item %s:%s", source, sourceID)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s:%s: %w", source, sourceID, err)
	}

	cols := projection.Project(itemType, payload)

	var expiresAt *time.Time
	if opts.TTL > 0 {
		t := time.Now().Add(opts.TTL)
		expiresAt = &t
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO items (
			id, source, source_id, type, subtype, name, name_original,
			year, authors, publisher, genres, language, tome, series_name, series_id,
			piece_count, figure_count, theme, runtime, pages, isbn, ean, imdb_id,
			image_url, thumbnail_url, source_url, detail_url, data, expires_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''),
			$8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28, $29
		)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			subtype = EXCLUDED.subtype,
			name = EXCLUDED.name,
			name_original = EXCLUDED.name_original,
			year = EXCLUDED.year,
			authors = EXCLUDED.authors,
			publisher = EXCLUDED.publisher,
			genres = EXCLUDED.genres,
			language = EXCLUDED.language,
			tome = EXCLUDED.tome,
			series_name = EXCLUDED.series_name,
			series_id = EXCLUDED.series_id,
			piece_count = EXCLUDED.piece_count,
			figure_count = EXCLUDED.figure_count,
			theme = EXCLUDED.theme,
			runtime = EXCLUDED.runtime,
			pages = EXCLUDED.pages,
			isbn = EXCLUDED.isbn,
			ean = EXCLUDED.ean,
			imdb_id = EXCLUDED.imdb_id,
			image_url = EXCLUDED.image_url,
			thumbnail_url = EXCLUDED.thumbnail_url,
			source_url = EXCLUDED.source_url,
			detail_url = EXCLUDED.detail_url,
			data = EXCLUDED.data,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()`,
		models.ItemID(source, sourceID), source, sourceID, itemType, opts.Subtype, name, opts.NameOriginal,
		cols.Year, cols.Authors, cols.Publisher, cols.Genres, cols.Language, cols.Tome, cols.SeriesName, cols.SeriesID,
		cols.PieceCount, cols.FigureCount, cols.Theme, cols.Runtime, cols.Pages, cols.ISBN, cols.EAN, cols.IMDBID,
		cols.ImageURL, cols.ThumbnailURL, cols.SourceURL, cols.DetailURL, data, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("save item %s:%s: %w", source, sourceID, err)
	}
	return nil
}

// TouchItem bumps the access counters of a cache hit. Called
// fire-and-forget from the read path; errors are the caller's to swallow.
func (db *DB) TouchItem(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE items SET fetch_count = fetch_count + 1, last_accessed = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch item %s: %w", id, err)
	}
	return nil
}

// LocalSearchOptions filters a SearchLocal call.
type LocalSearchOptions struct {
	Source              string
	Type                string
	Limit               int
	Offset              int
	SimilarityThreshold float64
}

// SearchLocal runs a trigram search against the denormalized item names.
// Ranking: exact normalized match first, then trigram similarity, then
// popularity, then recency of the work itself.
//
// A query shorter than two normalized characters returns nothing unless a
// source or type filter narrows the scan.
func (db *DB) SearchLocal(ctx context.Context, query string, opts LocalSearchOptions) ([]*models.Item, error) {
	if db.mode == config.ModeAPIOnly {
		return nil, nil
	}

	normalized := projection.NormalizeText(query)
	if len(normalized) < 2 && opts.Source == "" && opts.Type == "" {
		return []*models.Item{}, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.3
	}

	var sb strings.Builder
	args := []any{normalized}
	sb.WriteString(`SELECT ` + itemColumns + ` FROM items WHERE 1=1`)
	if db.mode == config.ModeHybrid {
		sb.WriteString(` AND (expires_at IS NULL OR expires_at > now())`)
	}
	if normalized != "" {
		args = append(args, threshold)
		sb.WriteString(fmt.Sprintf(
			` AND (name_search = $1 OR similarity(name_search, $1) >= $%d)`, len(args)))
	}
	if opts.Source != "" {
		args = append(args, opts.Source)
		sb.WriteString(fmt.Sprintf(` AND source = $%d`, len(args)))
	}
	if opts.Type != "" {
		args = append(args, opts.Type)
		sb.WriteString(fmt.Sprintf(` AND type = $%d`, len(args)))
	}
	sb.WriteString(` ORDER BY (name_search = $1) DESC, similarity(name_search, $1) DESC, fetch_count DESC, year DESC NULLS LAST`)
	args = append(args, opts.Limit)
	sb.WriteString(fmt.Sprintf(` LIMIT $%d`, len(args)))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		sb.WriteString(fmt.Sprintf(` OFFSET $%d`, len(args)))
	}

	rows, err := db.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("local search %q: %w", query, err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0, opts.Limit)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("local search %q: %w", query, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("local search %q: %w", query, err)
	}
	return items, nil
}

// RefreshCandidate is one stale-popular row selected for proactive refresh.
type RefreshCandidate struct {
	ID         string
	Source     string
	SourceID   string
	Type       string
	Name       string
	FetchCount int
	ExpiresAt  time.Time
}

// ItemsToRefresh selects up to limit rows expiring within the window,
// hottest first, from the items_to_refresh view.
func (db *DB) ItemsToRefresh(ctx context.Context, window time.Duration, limit int) ([]RefreshCandidate, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, source, source_id, type, name, fetch_count, expires_at
		FROM items_to_refresh
		WHERE expires_at < now() + $1
		LIMIT $2`, window, limit)
	if err != nil {
		return nil, fmt.Errorf("select refresh candidates: %w", err)
	}
	defer rows.Close()

	var out []RefreshCandidate
	for rows.Next() {
		var rc RefreshCandidate
		if err := rows.Scan(&rc.ID, &rc.Source, &rc.SourceID, &rc.Type, &rc.Name, &rc.FetchCount, &rc.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan refresh candidate: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// PurgeExpired deletes rows whose TTL elapsed more than the grace period
// ago. Used by the eviction sweep; db_only deployments never call it.
func (db *DB) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM items WHERE expires_at IS NOT NULL AND expires_at < now() - $1`, grace)
	if err != nil {
		return 0, fmt.Errorf("purge expired items: %w", err)
	}
	return tag.RowsAffected(), nil
}

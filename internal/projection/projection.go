// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package projection derives the typed, indexable columns of an item from
// its opaque normalized payload.
//
// The payloads cached by the gateway are provider-normalized JSON objects
// whose exact shape varies by item type. This package is the single place
// that reads those objects field-by-field; every other component treats
// the payload as an opaque blob and works with the projected columns.
package projection

import (
	"strconv"
	"strings"

	"github.com/fxbrun/colporteur/internal/models"
)

// Columns is the typed projection of one payload. Nil pointers and nil
// slices map to NULL columns.
type Columns struct {
	Year         *int
	Authors      []string
	Publisher    *string
	Genres       []string
	Language     *string
	Tome         *int
	SeriesName   *string
	SeriesID     *string
	PieceCount   *int
	FigureCount  *int
	Theme        *string
	Runtime      *int
	Pages        *int
	ISBN         *string
	EAN          *string
	IMDBID       *string
	ImageURL     *string
	ThumbnailURL *string
	SourceURL    *string
	DetailURL    *string
}

// Project computes the projected columns for a payload of the given item
// type. A nil or empty payload projects to all-null columns; callers that
// persist items refuse such payloads before reaching this point.
//
// Unknown fields always project to null: an upstream payload is never
// rejected for carrying less than the full column set.
func Project(itemType string, payload map[string]any) Columns {
	if len(payload) == 0 {
		return Columns{}
	}

	cols := Columns{
		Year:      yearOf(payload),
		Genres:    stringsAt(payload, "genres"),
		Language:  strAt(payload, "language"),
		ImageURL:  firstStr(payload, "image", "imageUrl", "image_url"),
		SourceURL: firstStr(payload, "sourceUrl", "source_url", "url"),
		DetailURL: firstStr(payload, "detailUrl", "detail_url"),
	}
	if img := nestedStr(payload, "images", "cover"); img != nil {
		cols.ImageURL = img
	}
	if thumb := nestedStr(payload, "images", "thumbnail"); thumb != nil {
		cols.ThumbnailURL = thumb
	}

	switch itemType {
	case models.TypeBook, models.TypeManga:
		cols.Authors = stringsAt(payload, "authors")
		cols.Publisher = strAt(payload, "publisher")
		cols.Tome = intAt(payload, "tome")
		cols.Pages = intAt(payload, "pages")
		cols.ISBN = firstStr(payload, "isbn", "isbn13", "isbn10")
		cols.SeriesName = nestedStr(payload, "series", "name")
		cols.SeriesID = nestedScalar(payload, "series", "id")
		if cols.SeriesName == nil {
			cols.SeriesName = strAt(payload, "seriesName")
		}

	case models.TypeConstructToy:
		cols.Theme = strAt(payload, "theme")
		cols.PieceCount = firstInt(payload, "pieceCount", "piece_count", "pieces")
		cols.FigureCount = firstInt(payload, "figureCount", "figure_count", "minifigs")
		cols.EAN = firstStr(payload, "ean", "barcode")
		if official := nestedStr(payload, "urls", "official"); official != nil {
			cols.SourceURL = official
		}

	case models.TypeMovie, models.TypeTV:
		cols.Runtime = intAt(payload, "runtime")
		cols.IMDBID = nestedStr(payload, "externalIds", "imdb")
		if poster := nestedStr(payload, "images", "poster"); poster != nil && cols.ImageURL == nil {
			cols.ImageURL = poster
		}

	case models.TypeGame, models.TypeAlbum, models.TypeMusic,
		models.TypeCollectible, models.TypeBoardgame:
		// Common projection only: year, genres, language, images.
		cols.EAN = firstStr(payload, "ean", "barcode")
		cols.Authors = stringsAt(payload, "artists")
	}

	return cols
}

// yearOf derives the release year from year, releaseYear, or the first
// four characters of releaseDate, in that order.
func yearOf(payload map[string]any) *int {
	if y := firstInt(payload, "year", "releaseYear", "release_year"); y != nil {
		return y
	}
	date := firstStr(payload, "releaseDate", "release_date")
	if date == nil || len(*date) < 4 {
		return nil
	}
	if y, err := strconv.Atoi((*date)[:4]); err == nil && y > 0 {
		return &y
	}
	return nil
}

func strAt(payload map[string]any, key string) *string {
	if s, ok := payload[key].(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return &s
		}
	}
	return nil
}

func firstStr(payload map[string]any, keys ...string) *string {
	for _, key := range keys {
		if s := strAt(payload, key); s != nil {
			return s
		}
	}
	return nil
}

// intAt coerces numeric payload values. JSON decoding yields float64 for
// all numbers; string digits are accepted for scraped payloads.
func intAt(payload map[string]any, key string) *int {
	switch v := payload[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return &n
		}
	}
	return nil
}

func firstInt(payload map[string]any, keys ...string) *int {
	for _, key := range keys {
		if n := intAt(payload, key); n != nil {
			return n
		}
	}
	return nil
}

func stringsAt(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch e := v.(type) {
		case string:
			if e = strings.TrimSpace(e); e != "" {
				out = append(out, e)
			}
		case map[string]any:
			// Author/artist objects: {"name": "..."}.
			if name, ok := e["name"].(string); ok && strings.TrimSpace(name) != "" {
				out = append(out, strings.TrimSpace(name))
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nestedStr(payload map[string]any, outer, inner string) *string {
	obj, ok := payload[outer].(map[string]any)
	if !ok {
		return nil
	}
	return strAt(obj, inner)
}

// nestedScalar reads a nested value that may be a string or a number
// (upstream ids come in both shapes) and returns it as a string.
func nestedScalar(payload map[string]any, outer, inner string) *string {
	obj, ok := payload[outer].(map[string]any)
	if !ok {
		return nil
	}
	if s := strAt(obj, inner); s != nil {
		return s
	}
	if n := intAt(obj, inner); n != nil {
		s := strconv.Itoa(*n)
		return &s
	}
	return nil
}

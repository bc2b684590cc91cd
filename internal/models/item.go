// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package models defines the shared domain types for Colporteur: cached
// items, search envelopes and the request-scoped cache telemetry handle.
package models

import (
	"fmt"
	"time"
)

// Item types understood by the projection layer. Providers declare one of
// these for every payload they normalize.
const (
	TypeBook         = "book"
	TypeMovie        = "movie"
	TypeTV           = "tv"
	TypeGame         = "game"
	TypeMusic        = "music"
	TypeAlbum        = "album"
	TypeManga        = "manga"
	TypeBoardgame    = "boardgame"
	TypeConstructToy = "construct_toy"
	TypeCollectible  = "collectible"
)

// Item is one cached upstream payload plus its denormalized projection.
// The projection columns are derived from Data by the projection package;
// no other component reads the opaque payload directly.
type Item struct {
	// Identity. ID is always Source + ":" + SourceID.
	ID       string `json:"id"`
	Source   string `json:"source"`
	SourceID string `json:"sourceId"`
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`

	// Display.
	Name         string `json:"name"`
	NameOriginal string `json:"nameOriginal,omitempty"`

	// Projection, derived from Data. All nullable.
	Year         *int     `json:"year,omitempty"`
	Authors      []string `json:"authors,omitempty"`
	Publisher    *string  `json:"publisher,omitempty"`
	Genres       []string `json:"genres,omitempty"`
	Language     *string  `json:"language,omitempty"`
	Tome         *int     `json:"tome,omitempty"`
	SeriesName   *string  `json:"seriesName,omitempty"`
	SeriesID     *string  `json:"seriesId,omitempty"`
	PieceCount   *int     `json:"pieceCount,omitempty"`
	FigureCount  *int     `json:"figureCount,omitempty"`
	Theme        *string  `json:"theme,omitempty"`
	Runtime      *int     `json:"runtime,omitempty"`
	Pages        *int     `json:"pages,omitempty"`
	ISBN         *string  `json:"isbn,omitempty"`
	EAN          *string  `json:"ean,omitempty"`
	IMDBID       *string  `json:"imdbId,omitempty"`
	ImageURL     *string  `json:"imageUrl,omitempty"`
	ThumbnailURL *string  `json:"thumbnailUrl,omitempty"`
	SourceURL    *string  `json:"sourceUrl,omitempty"`
	DetailURL    *string  `json:"detailUrl,omitempty"`

	// Data is the full opaque upstream payload.
	Data map[string]any `json:"data"`

	// Lifecycle.
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
	FetchCount   int        `json:"fetchCount"`
}

// ItemID builds the composite cache identity for a provider-scoped item.
func ItemID(source, sourceID string) string {
	return fmt.Sprintf("%s:%s", source, sourceID)
}

// Expired reports whether the item's TTL has elapsed at the given instant.
// Items with a nil ExpiresAt are permanent.
func (i *Item) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}

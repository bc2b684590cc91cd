// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package projection

import (
	"testing"

	"github.com/fxbrun/colporteur/internal/models"
)

func TestProject_EmptyPayload(t *testing.T) {
	t.Parallel()

	cols := Project(models.TypeBook, nil)
	if cols.Year != nil || cols.Authors != nil || cols.ISBN != nil {
		t.Errorf("empty payload projected %+v", cols)
	}
}

func TestProject_Book(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"name":        "Tintin au Tibet",
		"authors":     []any{"Hergé"},
		"publisher":   "Casterman",
		"pages":       float64(62),
		"tome":        "20",
		"isbn13":      "9782203001190",
		"language":    "fr",
		"releaseDate": "1960-01-05",
		"series":      map[string]any{"id": float64(59), "name": "Tintin"},
		"images": map[string]any{
			"cover":     "https://img/cover.jpg",
			"thumbnail": "https://img/thumb.jpg",
		},
	}

	cols := Project(models.TypeBook, payload)
	if cols.Year == nil || *cols.Year != 1960 {
		t.Errorf("Year = %v, want 1960 from releaseDate", cols.Year)
	}
	if len(cols.Authors) != 1 || cols.Authors[0] != "Hergé" {
		t.Errorf("Authors = %v", cols.Authors)
	}
	if cols.Publisher == nil || *cols.Publisher != "Casterman" {
		t.Errorf("Publisher = %v", cols.Publisher)
	}
	if cols.Pages == nil || *cols.Pages != 62 {
		t.Errorf("Pages = %v", cols.Pages)
	}
	if cols.Tome == nil || *cols.Tome != 20 {
		t.Errorf("Tome = %v, want string digits coerced", cols.Tome)
	}
	if cols.ISBN == nil || *cols.ISBN != "9782203001190" {
		t.Errorf("ISBN = %v", cols.ISBN)
	}
	if cols.SeriesName == nil || *cols.SeriesName != "Tintin" {
		t.Errorf("SeriesName = %v", cols.SeriesName)
	}
	if cols.SeriesID == nil || *cols.SeriesID != "59" {
		t.Errorf("SeriesID = %v, want numeric id stringified", cols.SeriesID)
	}
	if cols.ImageURL == nil || *cols.ImageURL != "https://img/cover.jpg" {
		t.Errorf("ImageURL = %v", cols.ImageURL)
	}
	if cols.ThumbnailURL == nil || *cols.ThumbnailURL != "https://img/thumb.jpg" {
		t.Errorf("ThumbnailURL = %v", cols.ThumbnailURL)
	}
}

func TestProject_Movie(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"name":        "The Matrix",
		"runtime":     float64(136),
		"year":        float64(1999),
		"genres":      []any{"Action", "Sci-Fi"},
		"externalIds": map[string]any{"imdb": "tt0133093"},
		"images":      map[string]any{"poster": "https://img/poster.jpg"},
	}

	cols := Project(models.TypeMovie, payload)
	if cols.Runtime == nil || *cols.Runtime != 136 {
		t.Errorf("Runtime = %v", cols.Runtime)
	}
	if cols.Year == nil || *cols.Year != 1999 {
		t.Errorf("Year = %v", cols.Year)
	}
	if cols.IMDBID == nil || *cols.IMDBID != "tt0133093" {
		t.Errorf("IMDBID = %v", cols.IMDBID)
	}
	if len(cols.Genres) != 2 {
		t.Errorf("Genres = %v", cols.Genres)
	}
	if cols.ImageURL == nil || *cols.ImageURL != "https://img/poster.jpg" {
		t.Errorf("ImageURL = %v, want poster fallback", cols.ImageURL)
	}
}

func TestProject_ConstructToy(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"name":       "Millennium Falcon",
		"theme":      "Star Wars",
		"pieces":     float64(7541),
		"minifigs":   float64(8),
		"ean":        "5702015869935",
		"year":       float64(2017),
		"urls":       map[string]any{"official": "https://lego.com/75192"},
		"detailUrl":  "/lego/set/75192",
		"image":      "https://img/falcon.jpg",
	}

	cols := Project(models.TypeConstructToy, payload)
	if cols.Theme == nil || *cols.Theme != "Star Wars" {
		t.Errorf("Theme = %v", cols.Theme)
	}
	if cols.PieceCount == nil || *cols.PieceCount != 7541 {
		t.Errorf("PieceCount = %v, want pieces alias", cols.PieceCount)
	}
	if cols.FigureCount == nil || *cols.FigureCount != 8 {
		t.Errorf("FigureCount = %v, want minifigs alias", cols.FigureCount)
	}
	if cols.EAN == nil || *cols.EAN != "5702015869935" {
		t.Errorf("EAN = %v", cols.EAN)
	}
	if cols.SourceURL == nil || *cols.SourceURL != "https://lego.com/75192" {
		t.Errorf("SourceURL = %v, want urls.official", cols.SourceURL)
	}
	if cols.DetailURL == nil || *cols.DetailURL != "/lego/set/75192" {
		t.Errorf("DetailURL = %v", cols.DetailURL)
	}
}

func TestProject_Album(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"name":    "Discovery",
		"artists": []any{map[string]any{"name": "Daft Punk"}},
		"ean":     "0724384960650",
		"year":    float64(2001),
	}

	cols := Project(models.TypeAlbum, payload)
	if len(cols.Authors) != 1 || cols.Authors[0] != "Daft Punk" {
		t.Errorf("Authors = %v, want artist objects unwrapped", cols.Authors)
	}
	if cols.EAN == nil || *cols.EAN != "0724384960650" {
		t.Errorf("EAN = %v", cols.EAN)
	}
}

func TestProject_UnknownFieldsAreNull(t *testing.T) {
	t.Parallel()

	cols := Project(models.TypeBook, map[string]any{"name": "X", "pages": "not a number"})
	if cols.Pages != nil {
		t.Errorf("Pages = %v, want nil for garbage digits", cols.Pages)
	}
	if cols.Year != nil || cols.ISBN != nil || cols.Authors != nil {
		t.Errorf("cols = %+v, want nulls", cols)
	}
}

func TestYearOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload map[string]any
		want    int
		null    bool
	}{
		{"year int", map[string]any{"year": float64(1984)}, 1984, false},
		{"releaseYear", map[string]any{"releaseYear": float64(2020)}, 2020, false},
		{"date prefix", map[string]any{"releaseDate": "1999-03-31"}, 1999, false},
		{"short date", map[string]any{"releaseDate": "19"}, 0, true},
		{"garbage date", map[string]any{"releaseDate": "n/a-03-31"}, 0, true},
		{"absent", map[string]any{}, 0, true},
	}
	for _, tc := range cases {
		got := yearOf(tc.payload)
		if tc.null {
			if got != nil {
				t.Errorf("%s: yearOf = %d, want nil", tc.name, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Errorf("%s: yearOf = %v, want %d", tc.name, got, tc.want)
		}
	}
}

func TestStringsAt_FiltersEmpties(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"authors": []any{" Hergé ", "", map[string]any{"name": "Jacobs"}, float64(3)}}
	got := stringsAt(payload, "authors")
	if len(got) != 2 || got[0] != "Hergé" || got[1] != "Jacobs" {
		t.Errorf("stringsAt = %v", got)
	}

	if got := stringsAt(map[string]any{"authors": "solo"}, "authors"); got != nil {
		t.Errorf("non-list value projected %v", got)
	}
}

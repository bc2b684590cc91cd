// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/models"
)

const (
	tmdbBase      = "https://api.themoviedb.org/3"
	tmdbImageBase = "https://image.tmdb.org/t/p"
	tmdbKeyHint   = "get a free API key at https://www.themoviedb.org/settings/api"
)

// TMDB is the connector for The Movie Database. Requires an API key.
type TMDB struct {
	fetcher *fetch.Fetcher
	apiKey  string
}

func NewTMDB(fetcher *fetch.Fetcher, apiKey string) *TMDB {
	return &TMDB{fetcher: fetcher, apiKey: apiKey}
}

func (t *TMDB) Descriptor() Descriptor {
	return Descriptor{
		Tag:         "tmdb",
		Type:        models.TypeMovie,
		NeedsAPIKey: true,
		KeyHint:     tmdbKeyHint,
		MaxResults:  20, // TMDB pages are a fixed 20
	}
}

type tmdbMovie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	OrigTitle   string  `json:"original_title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	PosterPath  string  `json:"poster_path"`
	Language    string  `json:"original_language"`
	VoteAverage float64 `json:"vote_average"`
	Runtime     int     `json:"runtime"`
	Genres      []struct {
		Name string `json:"name"`
	} `json:"genres"`
	IMDBID string `json:"imdb_id"`
}

type tmdbSearch struct {
	Page         int         `json:"page"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
	Results      []tmdbMovie `json:"results"`
}

func (t *TMDB) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	if t.apiKey == "" {
		return nil, &fetch.AuthError{Provider: "tmdb", Hint: tmdbKeyHint}
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", q.Term)
	params.Set("api_key", t.apiKey)
	params.Set("page", strconv.Itoa(page))
	if q.Lang != "" {
		params.Set("language", q.Lang)
	}

	var res tmdbSearch
	if err := t.fetcher.GetJSON(ctx, "tmdb", tmdbBase+"/search/movie?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}

	data := make([]map[string]any, 0, len(res.Results))
	for _, m := range res.Results {
		data = append(data, normalizeTMDBMovie(m))
	}
	return &models.SearchEnvelope{
		Success:  true,
		Provider: "tmdb",
		Query:    q.Term,
		Total:    res.TotalResults,
		Count:    len(data),
		Data:     data,
		Pagination: &models.Pagination{
			Page:       res.Page,
			PerPage:    20,
			TotalPages: res.TotalPages,
		},
		Meta: models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func (t *TMDB) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	if t.apiKey == "" {
		return nil, &fetch.AuthError{Provider: "tmdb", Hint: tmdbKeyHint}
	}
	params := url.Values{}
	params.Set("api_key", t.apiKey)
	if q.Lang != "" {
		params.Set("language", q.Lang)
	}

	var m tmdbMovie
	u := fmt.Sprintf("%s/movie/%s?%s", tmdbBase, url.PathEscape(id), params.Encode())
	if err := t.fetcher.GetJSON(ctx, "tmdb", u, nil, &m); err != nil {
		return nil, err
	}
	return &models.DetailEnvelope{
		Success:  true,
		Provider: "tmdb",
		ID:       id,
		Data:     normalizeTMDBMovie(m),
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func normalizeTMDBMovie(m tmdbMovie) map[string]any {
	out := map[string]any{
		"id":   strconv.Itoa(m.ID),
		"name": m.Title,
	}
	if m.OrigTitle != "" && m.OrigTitle != m.Title {
		out["nameOriginal"] = m.OrigTitle
	}
	if m.Overview != "" {
		out["description"] = m.Overview
	}
	if m.ReleaseDate != "" {
		out["releaseDate"] = m.ReleaseDate
	}
	if m.Language != "" {
		out["language"] = m.Language
	}
	if m.VoteAverage > 0 {
		out["rating"] = m.VoteAverage
	}
	if m.Runtime > 0 {
		out["runtime"] = m.Runtime
	}
	if len(m.Genres) > 0 {
		genres := make([]any, len(m.Genres))
		for i, g := range m.Genres {
			genres[i] = g.Name
		}
		out["genres"] = genres
	}
	if m.IMDBID != "" {
		out["externalIds"] = map[string]any{"imdb": m.IMDBID}
	}
	if m.PosterPath != "" {
		out["image"] = tmdbImageBase + "/w500" + m.PosterPath
		out["images"] = map[string]any{
			"poster":    tmdbImageBase + "/w500" + m.PosterPath,
			"thumbnail": tmdbImageBase + "/w154" + m.PosterPath,
		}
	}
	out["sourceUrl"] = fmt.Sprintf("https://www.themoviedb.org/movie/%d", m.ID)
	return out
}

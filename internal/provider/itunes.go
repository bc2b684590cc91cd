// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package provider

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/models"
)

const itunesBase = "https://itunes.apple.com"

// ITunes is the connector for the iTunes Search API (albums). Keyless;
// Apple documents a ~20 calls/minute courtesy limit.
type ITunes struct {
	fetcher *fetch.Fetcher
}

func NewITunes(fetcher *fetch.Fetcher) *ITunes {
	return &ITunes{fetcher: fetcher}
}

func (i *ITunes) Descriptor() Descriptor {
	return Descriptor{
		Tag:         "itunes",
		Type:        models.TypeAlbum,
		MinInterval: 3 * time.Second,
		MaxResults:  50,
	}
}

type itunesAlbum struct {
	CollectionID   int     `json:"collectionId"`
	CollectionName string  `json:"collectionName"`
	ArtistName     string  `json:"artistName"`
	ReleaseDate    string  `json:"releaseDate"`
	Genre          string  `json:"primaryGenreName"`
	TrackCount     int     `json:"trackCount"`
	ArtworkURL100  string  `json:"artworkUrl100"`
	ArtworkURL60   string  `json:"artworkUrl60"`
	ViewURL        string  `json:"collectionViewUrl"`
	Price          float64 `json:"collectionPrice"`
	Country        string  `json:"country"`
}

type itunesSearch struct {
	ResultCount int           `json:"resultCount"`
	Results     []itunesAlbum `json:"results"`
}

func (i *ITunes) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	max := q.Max
	if max <= 0 || max > 50 {
		max = 20
	}

	params := url.Values{}
	params.Set("term", q.Term)
	params.Set("entity", "album")
	params.Set("limit", strconv.Itoa(max))
	if q.Lang != "" {
		params.Set("country", countryFromLang(q.Lang))
	}

	var res itunesSearch
	if err := i.fetcher.GetJSON(ctx, "itunes", itunesBase+"/search?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}

	data := make([]map[string]any, 0, len(res.Results))
	for _, a := range res.Results {
		data = append(data, normalizeITunesAlbum(a))
	}
	return &models.SearchEnvelope{
		Success:  true,
		Provider: "itunes",
		Query:    q.Term,
		Total:    res.ResultCount,
		Count:    len(data),
		Data:     data,
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func (i *ITunes) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	params := url.Values{}
	params.Set("id", id)
	params.Set("entity", "album")

	var res itunesSearch
	if err := i.fetcher.GetJSON(ctx, "itunes", itunesBase+"/lookup?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return nil, fetch.ErrNotFound
	}
	return &models.DetailEnvelope{
		Success:  true,
		Provider: "itunes",
		ID:       id,
		Data:     normalizeITunesAlbum(res.Results[0]),
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func normalizeITunesAlbum(a itunesAlbum) map[string]any {
	out := map[string]any{
		"id":   strconv.Itoa(a.CollectionID),
		"name": a.CollectionName,
	}
	if a.ArtistName != "" {
		out["artists"] = []any{a.ArtistName}
	}
	if a.ReleaseDate != "" {
		out["releaseDate"] = a.ReleaseDate
	}
	if a.Genre != "" {
		out["genres"] = []any{a.Genre}
	}
	if a.TrackCount > 0 {
		out["trackCount"] = a.TrackCount
	}
	if a.ArtworkURL100 != "" {
		out["image"] = a.ArtworkURL100
		out["images"] = map[string]any{
			"cover":     a.ArtworkURL100,
			"thumbnail": a.ArtworkURL60,
		}
	}
	if a.ViewURL != "" {
		out["sourceUrl"] = a.ViewURL
	}
	return out
}

// countryFromLang maps a bare language code onto the storefront country
// the iTunes API expects. Close enough for the common cases.
func countryFromLang(lang string) string {
	switch lang {
	case "fr":
		return "FR"
	case "de":
		return "DE"
	case "es":
		return "ES"
	case "it":
		return "IT"
	case "ja":
		return "JP"
	default:
		return "US"
	}
}

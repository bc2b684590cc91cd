// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/models"
)

const deezerBase = "https://api.deezer.com"

// Deezer is the connector for the public Deezer album API. Keyless.
type Deezer struct {
	fetcher *fetch.Fetcher
}

func NewDeezer(fetcher *fetch.Fetcher) *Deezer {
	return &Deezer{fetcher: fetcher}
}

func (d *Deezer) Descriptor() Descriptor {
	return Descriptor{
		Tag:        "deezer",
		Type:       models.TypeAlbum,
		MaxResults: 100,
	}
}

type deezerAlbum struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Cover       string `json:"cover_big"`
	CoverSmall  string `json:"cover_small"`
	ReleaseDate string `json:"release_date"`
	NbTracks    int    `json:"nb_tracks"`
	UPC         string `json:"upc"`
	Artist      struct {
		Name string `json:"name"`
	} `json:"artist"`
	Genres struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	} `json:"genres"`
}

type deezerSearch struct {
	Total int           `json:"total"`
	Data  []deezerAlbum `json:"data"`
}

func (d *Deezer) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	max := q.Max
	if max <= 0 || max > 100 {
		max = 20
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("q", q.Term)
	params.Set("limit", strconv.Itoa(max))
	params.Set("index", strconv.Itoa((page-1)*max))

	var res deezerSearch
	if err := d.fetcher.GetJSON(ctx, "deezer", deezerBase+"/search/album?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}

	data := make([]map[string]any, 0, len(res.Data))
	for _, a := range res.Data {
		data = append(data, normalizeDeezerAlbum(a))
	}
	return &models.SearchEnvelope{
		Success:  true,
		Provider: "deezer",
		Query:    q.Term,
		Total:    res.Total,
		Count:    len(data),
		Data:     data,
		Pagination: &models.Pagination{
			Page:    page,
			PerPage: max,
		},
		Meta: models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func (d *Deezer) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	var a deezerAlbum
	u := fmt.Sprintf("%s/album/%s", deezerBase, url.PathEscape(id))
	if err := d.fetcher.GetJSON(ctx, "deezer", u, nil, &a); err != nil {
		return nil, err
	}
	if a.ID == 0 {
		// Deezer answers 200 with an error object for unknown ids.
		return nil, fetch.ErrNotFound
	}
	return &models.DetailEnvelope{
		Success:  true,
		Provider: "deezer",
		ID:       id,
		Data:     normalizeDeezerAlbum(a),
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

// SearchByCode resolves an album UPC through the upc: lookup form.
func (d *Deezer) SearchByCode(ctx context.Context, code string, q Query) (*models.SearchEnvelope, error) {
	var a deezerAlbum
	u := fmt.Sprintf("%s/album/upc:%s", deezerBase, url.PathEscape(code))
	err := d.fetcher.GetJSON(ctx, "deezer", u, nil, &a)
	if err != nil || a.ID == 0 {
		if err != nil && !errors.Is(err, fetch.ErrNotFound) {
			return nil, err
		}
		return &models.SearchEnvelope{
			Success:  true,
			Provider: "deezer",
			Query:    code,
			Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
			Data:     []map[string]any{},
		}, nil
	}
	return &models.SearchEnvelope{
		Success:  true,
		Provider: "deezer",
		Query:    code,
		Total:    1,
		Count:    1,
		Data:     []map[string]any{normalizeDeezerAlbum(a)},
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func normalizeDeezerAlbum(a deezerAlbum) map[string]any {
	out := map[string]any{
		"id":   strconv.Itoa(a.ID),
		"name": a.Title,
	}
	if a.Artist.Name != "" {
		out["artists"] = []any{a.Artist.Name}
	}
	if a.ReleaseDate != "" {
		out["releaseDate"] = a.ReleaseDate
	}
	if a.NbTracks > 0 {
		out["trackCount"] = a.NbTracks
	}
	if a.UPC != "" {
		out["ean"] = a.UPC
	}
	if len(a.Genres.Data) > 0 {
		genres := make([]any, len(a.Genres.Data))
		for i, g := range a.Genres.Data {
			genres[i] = g.Name
		}
		out["genres"] = genres
	}
	if a.Cover != "" {
		out["image"] = a.Cover
		out["images"] = map[string]any{
			"cover":     a.Cover,
			"thumbnail": a.CoverSmall,
		}
	}
	if a.Link != "" {
		out["sourceUrl"] = a.Link
	}
	return out
}

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
	"time"

	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/models"
)

const jikanBase = "https://api.jikan.moe/v4"

// Jikan is the connector for the Jikan (MyAnimeList) manga API. No key;
// the public instance enforces roughly 3 requests per second, so the
// spacing here stays under it.
type Jikan struct {
	fetcher *fetch.Fetcher
}

func NewJikan(fetcher *fetch.Fetcher) *Jikan {
	return &Jikan{fetcher: fetcher}
}

func (j *Jikan) Descriptor() Descriptor {
	return Descriptor{
		Tag:         "jikan",
		Type:        models.TypeManga,
		MinInterval: 350 * time.Millisecond,
		MaxResults:  25,
	}
}

type jikanManga struct {
	MalID    int    `json:"mal_id"`
	Title    string `json:"title"`
	TitleJP  string `json:"title_japanese"`
	Synopsis string `json:"synopsis"`
	Volumes  int    `json:"volumes"`
	Chapters int    `json:"chapters"`
	Status   string `json:"status"`
	URL      string `json:"url"`
	Score    float64 `json:"score"`
	Published struct {
		From string `json:"from"` // RFC3339
	} `json:"published"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Images struct {
		JPG struct {
			ImageURL      string `json:"image_url"`
			SmallImageURL string `json:"small_image_url"`
			LargeImageURL string `json:"large_image_url"`
		} `json:"jpg"`
	} `json:"images"`
}

type jikanSearch struct {
	Pagination struct {
		LastVisiblePage int  `json:"last_visible_page"`
		HasNextPage     bool `json:"has_next_page"`
		Items           struct {
			Total int `json:"total"`
		} `json:"items"`
	} `json:"pagination"`
	Data []jikanManga `json:"data"`
}

func (j *Jikan) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	max := q.Max
	if max <= 0 || max > 25 {
		max = 20
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("q", q.Term)
	params.Set("limit", strconv.Itoa(max))
	params.Set("page", strconv.Itoa(page))

	var res jikanSearch
	if err := j.fetcher.GetJSON(ctx, "jikan", jikanBase+"/manga?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}

	data := make([]map[string]any, 0, len(res.Data))
	for _, m := range res.Data {
		data = append(data, normalizeJikanManga(m))
	}
	return &models.SearchEnvelope{
		Success:  true,
		Provider: "jikan",
		Query:    q.Term,
		Total:    res.Pagination.Items.Total,
		Count:    len(data),
		Data:     data,
		Pagination: &models.Pagination{
			Page:       page,
			PerPage:    max,
			TotalPages: res.Pagination.LastVisiblePage,
		},
		Meta: models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func (j *Jikan) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	var res struct {
		Data jikanManga `json:"data"`
	}
	u := fmt.Sprintf("%s/manga/%s/full", jikanBase, url.PathEscape(id))
	if err := j.fetcher.GetJSON(ctx, "jikan", u, nil, &res); err != nil {
		return nil, err
	}
	return &models.DetailEnvelope{
		Success:  true,
		Provider: "jikan",
		ID:       id,
		Data:     normalizeJikanManga(res.Data),
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func normalizeJikanManga(m jikanManga) map[string]any {
	out := map[string]any{
		"id":   strconv.Itoa(m.MalID),
		"name": m.Title,
	}
	if m.TitleJP != "" && m.TitleJP != m.Title {
		out["nameOriginal"] = m.TitleJP
	}
	if m.Synopsis != "" {
		out["description"] = m.Synopsis
	}
	if m.Volumes > 0 {
		out["tome"] = m.Volumes
	}
	if m.Status != "" {
		out["status"] = m.Status
	}
	if m.Score > 0 {
		out["rating"] = m.Score
	}
	if from := m.Published.From; len(from) >= 4 {
		out["releaseDate"] = from[:10]
	}
	if len(m.Authors) > 0 {
		authors := make([]any, len(m.Authors))
		for i, a := range m.Authors {
			authors[i] = a.Name
		}
		out["authors"] = authors
	}
	if len(m.Genres) > 0 {
		genres := make([]any, len(m.Genres))
		for i, g := range m.Genres {
			genres[i] = g.Name
		}
		out["genres"] = genres
	}
	if img := m.Images.JPG; img.ImageURL != "" {
		cover := img.LargeImageURL
		if cover == "" {
			cover = img.ImageURL
		}
		out["image"] = cover
		out["images"] = map[string]any{
			"cover":     cover,
			"thumbnail": img.SmallImageURL,
		}
	}
	if m.URL != "" {
		out["sourceUrl"] = m.URL
	}
	return out
}

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

const googleBooksBase = "https://www.googleapis.com/books/v1"

// GoogleBooks is the connector for the Google Books volumes API. Works
// without an API key at reduced quota; a configured key raises it.
type GoogleBooks struct {
	fetcher *fetch.Fetcher
	apiKey  string
}

// NewGoogleBooks builds the connector. apiKey may be empty.
func NewGoogleBooks(fetcher *fetch.Fetcher, apiKey string) *GoogleBooks {
	return &GoogleBooks{fetcher: fetcher, apiKey: apiKey}
}

func (g *GoogleBooks) Descriptor() Descriptor {
	return Descriptor{
		Tag:        "googlebooks",
		Type:       models.TypeBook,
		MaxResults: 40,
	}
}

// googleVolume mirrors the subset of the volumes resource we project.
type googleVolume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		PageCount           int      `json:"pageCount"`
		Categories          []string `json:"categories"`
		Language            string   `json:"language"`
		CanonicalVolumeLink string   `json:"canonicalVolumeLink"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks struct {
			SmallThumbnail string `json:"smallThumbnail"`
			Thumbnail      string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

type googleVolumeList struct {
	TotalItems int            `json:"totalItems"`
	Items      []googleVolume `json:"items"`
}

func (g *GoogleBooks) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	return g.search(ctx, q.Term, q)
}

// SearchByCode resolves an ISBN through the isbn: query operator.
func (g *GoogleBooks) SearchByCode(ctx context.Context, code string, q Query) (*models.SearchEnvelope, error) {
	env, err := g.search(ctx, "isbn:"+code, q)
	if err != nil {
		return nil, err
	}
	env.Query = code
	return env, nil
}

func (g *GoogleBooks) search(ctx context.Context, term string, q Query) (*models.SearchEnvelope, error) {
	max := q.Max
	if max <= 0 || max > 40 {
		max = 20
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("q", term)
	params.Set("maxResults", strconv.Itoa(max))
	params.Set("startIndex", strconv.Itoa((page-1)*max))
	if q.Lang != "" {
		params.Set("langRestrict", q.Lang)
	}
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	var list googleVolumeList
	if err := g.fetcher.GetJSON(ctx, "googlebooks", googleBooksBase+"/volumes?"+params.Encode(), nil, &list); err != nil {
		return nil, err
	}

	data := make([]map[string]any, 0, len(list.Items))
	for _, vol := range list.Items {
		data = append(data, normalizeGoogleVolume(vol))
	}
	return &models.SearchEnvelope{
		Success:  true,
		Provider: "googlebooks",
		Query:    q.Term,
		Total:    list.TotalItems,
		Count:    len(data),
		Data:     data,
		Pagination: &models.Pagination{
			Page:    page,
			PerPage: max,
		},
		Meta: models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func (g *GoogleBooks) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	params := url.Values{}
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}
	u := fmt.Sprintf("%s/volumes/%s", googleBooksBase, url.PathEscape(id))
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}

	var vol googleVolume
	if err := g.fetcher.GetJSON(ctx, "googlebooks", u, nil, &vol); err != nil {
		return nil, err
	}
	return &models.DetailEnvelope{
		Success:  true,
		Provider: "googlebooks",
		ID:       id,
		Data:     normalizeGoogleVolume(vol),
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

// normalizeGoogleVolume maps one volume onto the unified result shape.
func normalizeGoogleVolume(vol googleVolume) map[string]any {
	vi := vol.VolumeInfo
	out := map[string]any{
		"id":   vol.ID,
		"name": vi.Title,
	}
	if vi.Subtitle != "" {
		out["subtitle"] = vi.Subtitle
	}
	if len(vi.Authors) > 0 {
		out["authors"] = toAnySlice(vi.Authors)
	}
	if vi.Publisher != "" {
		out["publisher"] = vi.Publisher
	}
	if vi.PublishedDate != "" {
		out["releaseDate"] = vi.PublishedDate
	}
	if vi.Description != "" {
		out["description"] = vi.Description
	}
	if vi.PageCount > 0 {
		out["pages"] = vi.PageCount
	}
	if len(vi.Categories) > 0 {
		out["genres"] = toAnySlice(vi.Categories)
	}
	if vi.Language != "" {
		out["language"] = vi.Language
	}
	for _, ident := range vi.IndustryIdentifiers {
		switch ident.Type {
		case "ISBN_13":
			out["isbn13"] = ident.Identifier
		case "ISBN_10":
			out["isbn10"] = ident.Identifier
		}
	}
	if vi.ImageLinks.Thumbnail != "" {
		out["image"] = vi.ImageLinks.Thumbnail
	}
	if vi.ImageLinks.SmallThumbnail != "" {
		out["images"] = map[string]any{
			"cover":     vi.ImageLinks.Thumbnail,
			"thumbnail": vi.ImageLinks.SmallThumbnail,
		}
	}
	if vi.CanonicalVolumeLink != "" {
		out["sourceUrl"] = vi.CanonicalVolumeLink
	}
	return out
}

// toAnySlice widens []string for storage in the generic payload map.
func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

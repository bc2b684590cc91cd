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
	"strings"
	"time"

	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/models"
)

const openLibraryBase = "https://openlibrary.org"

// OpenLibrary is the connector for the Open Library search and works
// APIs. No API key; their usage policy asks for gentle pacing.
type OpenLibrary struct {
	fetcher *fetch.Fetcher
}

func NewOpenLibrary(fetcher *fetch.Fetcher) *OpenLibrary {
	return &OpenLibrary{fetcher: fetcher}
}

func (o *OpenLibrary) Descriptor() Descriptor {
	return Descriptor{
		Tag:         "openlibrary",
		Type:        models.TypeBook,
		MinInterval: 500 * time.Millisecond,
		MaxResults:  100,
	}
}

type openLibraryDoc struct {
	Key              string   `json:"key"` // "/works/OL45883W"
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	Publisher        []string `json:"publisher"`
	ISBN             []string `json:"isbn"`
	Language         []string `json:"language"`
	Subject          []string `json:"subject"`
	CoverI           int      `json:"cover_i"`
	NumberOfPagesMed int      `json:"number_of_pages_median"`
}

type openLibrarySearch struct {
	NumFound int              `json:"numFound"`
	Docs     []openLibraryDoc `json:"docs"`
}

func (o *OpenLibrary) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
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
	params.Set("page", strconv.Itoa(page))
	if q.Lang != "" {
		params.Set("lang", q.Lang)
	}

	var res openLibrarySearch
	if err := o.fetcher.GetJSON(ctx, "openlibrary", openLibraryBase+"/search.json?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}

	data := make([]map[string]any, 0, len(res.Docs))
	for _, doc := range res.Docs {
		data = append(data, normalizeOpenLibraryDoc(doc))
	}
	return &models.SearchEnvelope{
		Success:  true,
		Provider: "openlibrary",
		Query:    q.Term,
		Total:    res.NumFound,
		Count:    len(data),
		Data:     data,
		Pagination: &models.Pagination{
			Page:    page,
			PerPage: max,
		},
		Meta: models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

// openLibraryWork mirrors the works endpoint. Description appears as
// either a bare string or a typed object depending on the record's age.
type openLibraryWork struct {
	Title       string   `json:"title"`
	Description any      `json:"description"`
	Covers      []int    `json:"covers"`
	Subjects    []string `json:"subjects"`
	Created     struct {
		Value string `json:"value"`
	} `json:"created"`
}

func (o *OpenLibrary) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	var work openLibraryWork
	u := fmt.Sprintf("%s/works/%s.json", openLibraryBase, url.PathEscape(id))
	if err := o.fetcher.GetJSON(ctx, "openlibrary", u, nil, &work); err != nil {
		return nil, err
	}

	data := map[string]any{
		"id":   id,
		"name": work.Title,
	}
	switch desc := work.Description.(type) {
	case string:
		data["description"] = desc
	case map[string]any:
		if v, ok := desc["value"].(string); ok {
			data["description"] = v
		}
	}
	if len(work.Covers) > 0 && work.Covers[0] > 0 {
		data["image"] = openLibraryCoverURL(work.Covers[0], "L")
		data["images"] = map[string]any{
			"cover":     openLibraryCoverURL(work.Covers[0], "L"),
			"thumbnail": openLibraryCoverURL(work.Covers[0], "S"),
		}
	}
	if len(work.Subjects) > 0 {
		data["genres"] = toAnySlice(work.Subjects)
	}
	data["sourceUrl"] = fmt.Sprintf("%s/works/%s", openLibraryBase, id)

	return &models.DetailEnvelope{
		Success:  true,
		Provider: "openlibrary",
		ID:       id,
		Data:     data,
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

// SearchByCode resolves an ISBN via the search API's isbn field, which
// returns work-level docs in the same shape as free-text search.
func (o *OpenLibrary) SearchByCode(ctx context.Context, code string, q Query) (*models.SearchEnvelope, error) {
	params := url.Values{}
	params.Set("q", "isbn:"+code)
	params.Set("limit", "5")

	var res openLibrarySearch
	if err := o.fetcher.GetJSON(ctx, "openlibrary", openLibraryBase+"/search.json?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}

	data := make([]map[string]any, 0, len(res.Docs))
	for _, doc := range res.Docs {
		data = append(data, normalizeOpenLibraryDoc(doc))
	}
	return &models.SearchEnvelope{
		Success:  true,
		Provider: "openlibrary",
		Query:    code,
		Total:    res.NumFound,
		Count:    len(data),
		Data:     data,
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func normalizeOpenLibraryDoc(doc openLibraryDoc) map[string]any {
	out := map[string]any{
		"id":   strings.TrimPrefix(doc.Key, "/works/"),
		"name": doc.Title,
	}
	if len(doc.AuthorName) > 0 {
		out["authors"] = toAnySlice(doc.AuthorName)
	}
	if doc.FirstPublishYear > 0 {
		out["year"] = doc.FirstPublishYear
	}
	if len(doc.Publisher) > 0 {
		out["publisher"] = doc.Publisher[0]
	}
	if len(doc.ISBN) > 0 {
		out["isbn"] = doc.ISBN[0]
	}
	if len(doc.Language) > 0 {
		out["language"] = doc.Language[0]
	}
	if len(doc.Subject) > 0 {
		subjects := doc.Subject
		if len(subjects) > 10 {
			subjects = subjects[:10]
		}
		out["genres"] = toAnySlice(subjects)
	}
	if doc.NumberOfPagesMed > 0 {
		out["pages"] = doc.NumberOfPagesMed
	}
	if doc.CoverI > 0 {
		out["image"] = openLibraryCoverURL(doc.CoverI, "L")
		out["images"] = map[string]any{
			"cover":     openLibraryCoverURL(doc.CoverI, "L"),
			"thumbnail": openLibraryCoverURL(doc.CoverI, "S"),
		}
	}
	out["sourceUrl"] = openLibraryBase + doc.Key
	return out
}

func openLibraryCoverURL(coverID int, size string) string {
	return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-%s.jpg", coverID, size)
}

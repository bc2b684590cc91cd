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

	"github.com/PuerkitoBio/goquery"

	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/models"
)

const bedethequeBase = "https://www.bedetheque.com"

// Bedetheque scrapes the bedetheque.com comic database through the
// anti-bot proxy session. Item ids are the page slugs (e.g.
// "serie-59-BD-Asterix"), so a detail fetch is a single page load.
type Bedetheque struct {
	sessions *fetch.SessionManager
}

func NewBedetheque(sessions *fetch.SessionManager) *Bedetheque {
	return &Bedetheque{sessions: sessions}
}

func (b *Bedetheque) Descriptor() Descriptor {
	return Descriptor{
		Tag:         "bedetheque",
		Type:        models.TypeBook,
		MinInterval: 2 * time.Second,
		NeedsProxy:  true,
		MaxResults:  20,
	}
}

func (b *Bedetheque) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	u := bedethequeBase + "/search/albums?RechTitre=" + url.QueryEscape(q.Term)
	resp, err := b.sessions.FetchViaProxy(ctx, "bedetheque", u)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return nil, &fetch.UpstreamError{Provider: "bedetheque", Err: fmt.Errorf("parsing search page: %w", err)}
	}

	max := q.Max
	if max <= 0 || max > 20 {
		max = 20
	}

	var data []map[string]any
	doc.Find("ul.search-list li a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		id := slugFromURL(href)
		name := strings.TrimSpace(sel.Text())
		if id == "" || name == "" {
			return true
		}
		entry := map[string]any{
			"id":        id,
			"name":      name,
			"sourceUrl": href,
		}
		if img, ok := sel.Find("img").Attr("src"); ok && img != "" {
			entry["image"] = img
		}
		data = append(data, entry)
		return len(data) < max
	})

	return &models.SearchEnvelope{
		Success:  true,
		Provider: "bedetheque",
		Query:    q.Term,
		Total:    len(data),
		Count:    len(data),
		Data:     data,
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func (b *Bedetheque) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	pageURL := fmt.Sprintf("%s/%s.html", bedethequeBase, url.PathEscape(id))
	resp, err := b.sessions.FetchViaProxy(ctx, "bedetheque", pageURL)
	if err != nil {
		return nil, err
	}
	if resp.Status == 404 {
		return nil, fetch.ErrNotFound
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return nil, &fetch.UpstreamError{Provider: "bedetheque", Err: fmt.Errorf("parsing detail page: %w", err)}
	}

	data := map[string]any{
		"id":        id,
		"sourceUrl": pageURL,
	}
	if name := strings.TrimSpace(doc.Find("h1 a").First().Text()); name != "" {
		data["name"] = name
	} else if name := strings.TrimSpace(doc.Find("h1").First().Text()); name != "" {
		data["name"] = name
	}
	if img, ok := doc.Find(".serie-image img, .couv img").First().Attr("src"); ok && img != "" {
		data["image"] = img
	}
	if desc := strings.TrimSpace(doc.Find(".serie-description, .single-content p").First().Text()); desc != "" {
		data["description"] = desc
	}

	// The info list is label/value pairs like "Scénario : Goscinny".
	var authors []any
	doc.Find(".serie-info li, .infos li").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		label, value, found := strings.Cut(text, ":")
		if !found {
			return
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		switch {
		case strings.Contains(label, "scénario"), strings.Contains(label, "dessin"):
			authors = append(authors, value)
		case strings.Contains(label, "editeur"), strings.Contains(label, "éditeur"):
			data["publisher"] = value
		case strings.Contains(label, "genre"):
			data["genres"] = []any{value}
		case strings.Contains(label, "parution"), strings.Contains(label, "année"):
			if year, err := strconv.Atoi(lastField(value)); err == nil && year > 1800 {
				data["year"] = year
			}
		case strings.Contains(label, "isbn"):
			data["isbn"] = strings.ReplaceAll(value, "-", "")
		}
	})
	if len(authors) > 0 {
		data["authors"] = authors
	}

	if _, ok := data["name"]; !ok {
		return nil, fetch.ErrNotFound
	}
	return &models.DetailEnvelope{
		Success:  true,
		Provider: "bedetheque",
		ID:       id,
		Data:     data,
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

// slugFromURL extracts the page slug from an absolute or relative
// bedetheque URL ("/serie-59-BD-Asterix.html" -> "serie-59-BD-Asterix").
func slugFromURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	seg := u.Path
	if i := strings.LastIndex(seg, "/"); i >= 0 {
		seg = seg[i+1:]
	}
	return strings.TrimSuffix(seg, ".html")
}

func lastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

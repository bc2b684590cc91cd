// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fxbrun/colporteur/internal/provider"
	"github.com/fxbrun/colporteur/internal/validation"
)

// searchParams is the validated shape of a search request.
type searchParams struct {
	Query    string `validate:"required,min=1"`
	Max      int    `validate:"min=1"`
	Page     int    `validate:"min=1"`
	Lang     string
	AutoTrad bool
	Refresh  bool
}

// parseSearchParams validates query parameters against the provider's
// limits. Returns the params or a validation error with the offending
// field names.
func parseSearchParams(r *http.Request, maxResults int) (searchParams, *validation.RequestValidationError) {
	q := r.URL.Query()
	p := searchParams{
		Query:    strings.TrimSpace(q.Get("q")),
		Max:      intOr(q.Get("max"), 20),
		Page:     intOr(q.Get("page"), 1),
		Lang:     normalizeLang(q.Get("lang")),
		AutoTrad: boolParam(q.Get("autoTrad")),
		Refresh:  boolParam(q.Get("refresh")),
	}
	if maxResults > 0 && p.Max > maxResults {
		p.Max = maxResults
	}
	if err := validation.ValidateStruct(&p); err != nil {
		return p, err
	}
	return p, nil
}

// detailParams is the validated shape of a details request. The
// detailUrl parameter carries "/{provider}/{type}/{id}".
type detailParams struct {
	Provider string `validate:"required"`
	Type     string
	ID       string `validate:"required"`
	Lang     string
	AutoTrad bool
	Refresh  bool
}

func parseDetailParams(r *http.Request) (detailParams, error) {
	q := r.URL.Query()
	detailURL := strings.TrimSpace(q.Get("detailUrl"))
	if detailURL == "" {
		return detailParams{}, fmt.Errorf("detailUrl is required")
	}

	providerTag, itemType, id, err := parseDetailURL(detailURL)
	if err != nil {
		return detailParams{}, err
	}
	p := detailParams{
		Provider: providerTag,
		Type:     itemType,
		ID:       id,
		Lang:     normalizeLang(q.Get("lang")),
		AutoTrad: boolParam(q.Get("autoTrad")),
		Refresh:  boolParam(q.Get("refresh")),
	}
	if verr := validation.ValidateStruct(&p); verr != nil {
		return p, verr
	}
	return p, nil
}

// parseDetailURL splits "/{provider}/{type}/{id}" or "/{provider}/{id}".
// The id segment may itself contain slashes (scraped slugs), so only the
// leading segments are consumed.
func parseDetailURL(detailURL string) (providerTag, itemType, id string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(detailURL, "/"), "/", 3)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2], nil
	case 2:
		return parts[0], "", parts[1], nil
	default:
		return "", "", "", fmt.Errorf("detailUrl must look like /{provider}/{type}/{id}")
	}
}

// codeParams is the validated shape of a barcode request.
type codeParams struct {
	Code string `validate:"required,min=8"`
	Lang string
}

func parseCodeParams(r *http.Request) (codeParams, *validation.RequestValidationError) {
	q := r.URL.Query()
	p := codeParams{
		Code: strings.TrimSpace(q.Get("code")),
		Lang: normalizeLang(q.Get("lang")),
	}
	if err := validation.ValidateStruct(&p); err != nil {
		return p, err
	}
	return p, nil
}

// query builds the provider-layer query from validated search params.
func (p searchParams) query() provider.Query {
	return provider.Query{
		Term:     p.Query,
		Page:     p.Page,
		Max:      p.Max,
		Lang:     p.Lang,
		AutoTrad: p.AutoTrad,
	}
}

// normalizeLang strips the region subtag: "fr-FR" -> "fr".
func normalizeLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

func boolParam(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func intOr(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

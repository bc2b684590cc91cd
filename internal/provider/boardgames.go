// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package provider

import (
	"context"
	"net/url"
	"time"

	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/models"
)

const bggBase = "https://boardgamegeek.com/xmlapi2"

// BoardGames is the connector for the BoardGameGeek XML API. BGG rate
// limits aggressively and bans bursty clients, hence the 1s spacing.
type BoardGames struct {
	fetcher *fetch.Fetcher
}

func NewBoardGames(fetcher *fetch.Fetcher) *BoardGames {
	return &BoardGames{fetcher: fetcher}
}

func (b *BoardGames) Descriptor() Descriptor {
	return Descriptor{
		Tag:         "boardgames",
		Type:        models.TypeBoardgame,
		MinInterval: time.Second,
		MaxResults:  50,
	}
}

// bggSearchItems mirrors /search. Search results carry only the name,
// year and id; everything else needs a /thing call.
type bggSearchItems struct {
	Total int `xml:"total,attr"`
	Items []struct {
		ID   string `xml:"id,attr"`
		Name struct {
			Value string `xml:"value,attr"`
		} `xml:"name"`
		YearPublished struct {
			Value int `xml:"value,attr"`
		} `xml:"yearpublished"`
	} `xml:"item"`
}

// bggThingItems mirrors /thing with stats.
type bggThingItems struct {
	Items []struct {
		ID    string `xml:"id,attr"`
		Image string `xml:"image"`
		Thumb string `xml:"thumbnail"`
		Names []struct {
			Type  string `xml:"type,attr"`
			Value string `xml:"value,attr"`
		} `xml:"name"`
		Description   string `xml:"description"`
		YearPublished struct {
			Value int `xml:"value,attr"`
		} `xml:"yearpublished"`
		MinPlayers struct {
			Value int `xml:"value,attr"`
		} `xml:"minplayers"`
		MaxPlayers struct {
			Value int `xml:"value,attr"`
		} `xml:"maxplayers"`
		PlayingTime struct {
			Value int `xml:"value,attr"`
		} `xml:"playingtime"`
		Links []struct {
			Type  string `xml:"type,attr"`
			Value string `xml:"value,attr"`
		} `xml:"link"`
	} `xml:"item"`
}

func (b *BoardGames) Search(ctx context.Context, q Query) (*models.SearchEnvelope, error) {
	params := url.Values{}
	params.Set("query", q.Term)
	params.Set("type", "boardgame")

	var res bggSearchItems
	if err := b.fetcher.GetXML(ctx, "boardgames", bggBase+"/search?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}

	max := q.Max
	if max <= 0 || max > 50 {
		max = 20
	}
	data := make([]map[string]any, 0, max)
	for _, item := range res.Items {
		if len(data) >= max {
			break
		}
		entry := map[string]any{
			"id":   item.ID,
			"name": item.Name.Value,
		}
		if item.YearPublished.Value > 0 {
			entry["year"] = item.YearPublished.Value
		}
		entry["sourceUrl"] = "https://boardgamegeek.com/boardgame/" + item.ID
		data = append(data, entry)
	}

	return &models.SearchEnvelope{
		Success:  true,
		Provider: "boardgames",
		Query:    q.Term,
		Total:    res.Total,
		Count:    len(data),
		Data:     data,
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

func (b *BoardGames) GetDetails(ctx context.Context, id string, q Query) (*models.DetailEnvelope, error) {
	params := url.Values{}
	params.Set("id", id)

	var res bggThingItems
	if err := b.fetcher.GetXML(ctx, "boardgames", bggBase+"/thing?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, fetch.ErrNotFound
	}
	item := res.Items[0]

	data := map[string]any{"id": item.ID}
	for _, n := range item.Names {
		if n.Type == "primary" {
			data["name"] = n.Value
			break
		}
	}
	if _, ok := data["name"]; !ok && len(item.Names) > 0 {
		data["name"] = item.Names[0].Value
	}
	if item.Description != "" {
		data["description"] = item.Description
	}
	if item.YearPublished.Value > 0 {
		data["year"] = item.YearPublished.Value
	}
	if item.MinPlayers.Value > 0 {
		data["minPlayers"] = item.MinPlayers.Value
	}
	if item.MaxPlayers.Value > 0 {
		data["maxPlayers"] = item.MaxPlayers.Value
	}
	if item.PlayingTime.Value > 0 {
		data["runtime"] = item.PlayingTime.Value
	}
	var categories []any
	var designers []any
	for _, link := range item.Links {
		switch link.Type {
		case "boardgamecategory":
			categories = append(categories, link.Value)
		case "boardgamedesigner":
			designers = append(designers, link.Value)
		}
	}
	if len(categories) > 0 {
		data["genres"] = categories
	}
	if len(designers) > 0 {
		data["authors"] = designers
	}
	if item.Image != "" {
		data["image"] = item.Image
		data["images"] = map[string]any{
			"cover":     item.Image,
			"thumbnail": item.Thumb,
		}
	}
	data["sourceUrl"] = "https://boardgamegeek.com/boardgame/" + item.ID

	return &models.DetailEnvelope{
		Success:  true,
		Provider: "boardgames",
		ID:       id,
		Data:     data,
		Meta:     models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}, nil
}

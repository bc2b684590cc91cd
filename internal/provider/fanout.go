// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package provider

import (
	"context"
	"sync"

	"github.com/fxbrun/colporteur/internal/logging"
	"github.com/fxbrun/colporteur/internal/models"
)

// FanOut runs one search across several providers concurrently and
// returns the union envelope once every branch has settled. A failing
// branch contributes its error string instead of results; it never
// cancels the siblings.
//
// Each branch runs with its own CacheCallInfo handle so concurrent
// branches do not trample the request-level one. The request-level
// handle is left reporting a hit only if every branch hit its cache.
func FanOut(ctx context.Context, shells []*Shell, q Query, forceRefresh bool) *models.MultiSearchEnvelope {
	out := &models.MultiSearchEnvelope{
		Query:   q.Term,
		Sources: make(map[string]*models.SourceResult, len(shells)),
		Meta:    models.Meta{Lang: q.Lang, AutoTrad: q.AutoTrad},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	allHit := len(shells) > 0

	for _, sh := range shells {
		wg.Add(1)
		go func(sh *Shell) {
			defer wg.Done()

			branchInfo := &models.CacheCallInfo{}
			branchCtx := models.WithCacheInfo(ctx, branchInfo)

			env, err := sh.Search(branchCtx, q, forceRefresh)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("source", sh.Descriptor().Tag).Msg("fan-out branch failed")
				out.Sources[sh.Descriptor().Tag] = &models.SourceResult{Error: err.Error()}
				allHit = false
				return
			}
			out.Sources[sh.Descriptor().Tag] = &models.SourceResult{SearchEnvelope: env}
			if !branchInfo.Hit {
				allHit = false
			}
		}(sh)
	}
	wg.Wait()

	out.Success = !out.AllFailed()
	if info := models.CacheInfoFrom(ctx); info != nil && out.Success {
		info.Hit = allHit
		if allHit {
			info.Source = models.SourceSearchCache
		} else {
			info.Source = models.SourceAPI
		}
	}
	return out
}

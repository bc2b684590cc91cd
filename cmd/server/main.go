// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package main is the entry point for the Colporteur server.
//
// Colporteur is a read-through aggregation gateway for collectibles
// metadata. It fronts a few dozen heterogeneous upstream catalogs (books,
// movies, manga, board games, music, scraped comic databases) behind one
// uniform search/details/barcode API and persists everything it fetches in
// a two-tier PostgreSQL cache.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (env > config.yaml > defaults)
//  2. Database: pgx pool + embedded goose migrations (optional; without it
//     the gateway degrades to a pure pass-through in api_only mode)
//  3. Cache engine: item and search tiers over a bounded write-back pool
//  4. Fetch layer: shared rate limiter, retrying HTTP client, optional
//     FlareSolverr-style proxy session for scraped providers
//  5. Provider registry: every connector wrapped in the caching shell
//  6. Supervisor: stats flusher and stale-item refresher under suture
//  7. HTTP server: chi route tree
//
// # Signal handling
//
// SIGINT/SIGTERM trigger a graceful shutdown: the listener drains within
// server.shutdown_timeout, the proxy session is destroyed upstream, the
// write-back pool flushes its queue, and the pool closes last.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/thejerf/suture/v4"

	"github.com/fxbrun/colporteur/internal/api"
	"github.com/fxbrun/colporteur/internal/cache"
	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/database"
	"github.com/fxbrun/colporteur/internal/fetch"
	"github.com/fxbrun/colporteur/internal/logging"
	"github.com/fxbrun/colporteur/internal/metrics"
	"github.com/fxbrun/colporteur/internal/provider"
	"github.com/fxbrun/colporteur/internal/refresh"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", version).Msg("starting colporteur")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage is optional. Without it every request goes straight
	// upstream, so the cache mode is forced to match.
	var db *database.DB
	if cfg.Database.Enabled && cfg.Database.URL != "" {
		db, err = database.New(ctx, cfg.Database, cfg.Cache.Mode)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize database")
		}
	} else {
		if cfg.Cache.Mode != config.ModeAPIOnly {
			logging.Warn().
				Str("requested_mode", string(cfg.Cache.Mode)).
				Msg("database disabled, forcing api_only mode")
			cfg.Cache.Mode = config.ModeAPIOnly
		}
	}

	collector := metrics.NewCollector()

	writeback := cache.NewWriteback(cfg.Cache.WritebackWorkers, cfg.Cache.WritebackQueueSize)
	var itemStore cache.ItemStore
	var searchStore cache.SearchStore
	if db != nil {
		itemStore = db
		searchStore = db
	}
	items := cache.NewItemCache(itemStore, cfg.Cache, collector, writeback)
	searches := cache.NewSearchCache(searchStore, cfg.Cache, collector, writeback)

	limiter := fetch.NewLimiter()
	fetcher := fetch.NewFetcher(cfg.Fetch, limiter)

	var sessions *fetch.SessionManager
	if cfg.Proxy.Enabled && cfg.Proxy.BaseURL != "" {
		sessions = fetch.NewSessionManager(cfg.Proxy, cfg.Fetch, limiter)
		logging.Info().Str("base_url", cfg.Proxy.BaseURL).Msg("proxy session manager enabled")
	}

	registry := provider.NewRegistry(limiter)
	connectors := []provider.Provider{
		provider.NewGoogleBooks(fetcher, cfg.APIKey("googlebooks")),
		provider.NewOpenLibrary(fetcher),
		provider.NewTMDB(fetcher, cfg.APIKey("tmdb")),
		provider.NewJikan(fetcher),
		provider.NewBoardGames(fetcher),
		provider.NewITunes(fetcher),
		provider.NewDeezer(fetcher),
	}
	if sessions != nil {
		connectors = append(connectors, provider.NewBedetheque(sessions))
	}
	for _, p := range connectors {
		if err := registry.Register(p, items, searches, cfg, collector); err != nil {
			logging.Fatal().Err(err).Msg("failed to register provider")
		}
	}
	logging.Info().Strs("providers", registry.Tags()).Msg("provider registry ready")

	// Background services run under one supervisor so a crashing loop is
	// restarted instead of taking the process down.
	sup := suture.NewSimple("colporteur")
	if db != nil && cfg.Metrics.Enabled {
		sup.Add(metrics.NewFlusher(db, collector, cfg.Metrics.FlushInterval))
	}
	if db != nil && cfg.Refresh.Enabled {
		sup.Add(refresh.NewRefresher(db, registry, cfg.Refresh))
	}
	supErr := sup.ServeBackground(ctx)

	handler := api.NewHandler(cfg, registry, db, collector, version)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("http server listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("http server failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("http server shutdown incomplete")
	}
	if sessions != nil {
		sessions.Destroy(shutdownCtx)
	}
	if err := <-supErr; err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn().Err(err).Msg("supervisor stopped with error")
	}
	writeback.Close()
	if db != nil {
		db.Close()
	}
	logging.Info().Msg("shutdown complete")
}

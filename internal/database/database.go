// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package database implements the PostgreSQL storage layer: the bounded
// connection pool, the goose-managed schema, and the typed query helpers
// over the items, searches and stats tables.
//
// Failure semantics: reads return (nil, error) and writes return an error;
// callers in the cache engine log and swallow these so that a storage
// failure never aborts a client request.
package database

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the pgx connection pool and carries the cache-mode policy.
type DB struct {
	pool *pgxpool.Pool
	mode config.CacheMode
}

// New opens the connection pool, verifies connectivity and applies pending
// migrations.
func New(ctx context.Context, cfg config.DatabaseConfig, mode config.CacheMode) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	db := &DB{pool: pool, mode: mode}
	if err := db.migrate(); err != nil {
		pool.Close()
		return nil, err
	}

	logging.Info().
		Int32("max_conns", cfg.MaxConns).
		Str("cache_mode", string(mode)).
		Msg("database ready")
	return db, nil
}

// migrate applies embedded goose migrations through a database/sql handle
// borrowed from the pool.
func (db *DB) migrate() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer func() { _ = sqlDB.Close() }()

	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Mode returns the configured cache mode.
func (db *DB) Mode() config.CacheMode {
	return db.mode
}

// Ping verifies pool connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close shuts the pool down. Safe to call once at shutdown.
func (db *DB) Close() {
	db.pool.Close()
}

// PoolStats is a snapshot of pool health exposed by /health.
type PoolStats struct {
	TotalConns    int32     `json:"totalConns"`
	IdleConns     int32     `json:"idleConns"`
	AcquiredConns int32     `json:"acquiredConns"`
	MaxConns      int32     `json:"maxConns"`
	CollectedAt   time.Time `json:"collectedAt"`
}

// Stats returns a snapshot of the pool counters.
func (db *DB) Stats() PoolStats {
	s := db.pool.Stat()
	return PoolStats{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		MaxConns:      s.MaxConns(),
		CollectedAt:   time.Now(),
	}
}

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/rs/zerolog"
)

// PostgresConfig holds the analytics store connection tuning.
type PostgresConfig struct {
	// DSN is the PostgreSQL/TimescaleDB connection string.
	DSN string

	// MaxOpenConns caps the pool. Zero derives it from NumCPU.
	MaxOpenConns int

	// MaxIdleConns keeps warm connections for reuse. Default 2.
	MaxIdleConns int

	// ConnMaxLifetime recycles connections to avoid staleness.
	// Default 1h.
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime drops idle connections. Default 5m.
	ConnMaxIdleTime time.Duration
}

// DefaultPostgresConfig returns the stock pool tuning.
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:             dsn,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// PostgresStore is the networked store adapter over database/sql and
// lib/pq.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPostgresStore opens the pool and verifies connectivity.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger zerolog.Logger) (*PostgresStore, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = max(runtime.NumCPU(), 2)
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = time.Hour
	}
	if cfg.ConnMaxIdleTime <= 0 {
		cfg.ConnMaxIdleTime = 5 * time.Minute
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres store: %w", err)
	}

	logger.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("postgres store connected")

	return &PostgresStore{db: db, logger: logger}, nil
}

// QueryValue runs a single-value read. No rows yields (nil, nil).
func (s *PostgresStore) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var value any
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query value: %w", err)
	}
	return value, nil
}

// Exec runs a write and returns the affected row count.
func (s *PostgresStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		// The write succeeded; only the count is unknown.
		return 0, nil
	}
	return affected, nil
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *PostgresStore) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

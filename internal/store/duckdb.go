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
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	"github.com/rs/zerolog"
)

// DuckDBConfig holds the embedded store tuning.
type DuckDBConfig struct {
	// Path is the database file. ":memory:" keeps everything
	// in-process, which is what the tests use.
	Path string

	// MaxMemory caps DuckDB's memory use, e.g. "1GB". Empty leaves the
	// engine default.
	MaxMemory string

	// Threads caps DuckDB's worker threads. Zero uses NumCPU.
	Threads int
}

// DefaultDuckDBConfig returns the stock embedded-store tuning.
func DefaultDuckDBConfig(path string) DuckDBConfig {
	return DuckDBConfig{Path: path}
}

// DuckDBStore is the embedded store adapter for standalone
// deployments: one binary, one file, no external database. It pairs
// with the in-memory or embedded-NATS bus since DuckDB has no NOTIFY.
type DuckDBStore struct {
	db     *sql.DB
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewDuckDBStore opens (or creates) the database file.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewDuckDBStore(ctx context.Context, cfg DuckDBConfig, logger zerolog.Logger) (*DuckDBStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("duckdb store: empty path")
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}

	var params []string
	if cfg.MaxMemory != "" {
		params = append(params, "max_memory="+cfg.MaxMemory)
	}
	params = append(params, fmt.Sprintf("threads=%d", cfg.Threads))

	dsn := cfg.Path
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb store: %w", err)
	}
	// DuckDB is in-process; a small pool avoids write contention.
	db.SetMaxOpenConns(cfg.Threads)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb store: %w", err)
	}

	logger.Info().Str("path", cfg.Path).Msg("duckdb store opened")
	return &DuckDBStore{db: db, logger: logger}, nil
}

// QueryValue runs a single-value read. No rows yields (nil, nil).
func (s *DuckDBStore) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
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
func (s *DuckDBStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// Ping verifies the engine responds.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *DuckDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *DuckDBStore) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

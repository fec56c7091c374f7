// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package store is the durable side of the ingestion core: the
// authoritative existence oracle the deduplication engine consults and
// the write path the pipeline inserts through. Two adapters share one
// interface: PostgreSQL/TimescaleDB for networked deployments and
// embedded DuckDB for standalone ones, with an optional circuit
// breaker wrapped around either.
package store

import (
	"context"
	"errors"
	"strings"
)

// Store is the durable store contract the core depends on.
type Store interface {
	// QueryValue runs a single-value read and returns the first column
	// of the first row. A query with no rows returns (nil, nil).
	QueryValue(ctx context.Context, query string, args ...any) (any, error)
	// Exec runs a write and returns the number of affected rows. Under
	// ON CONFLICT DO NOTHING a zero return on an insert means the row
	// already existed.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases the connection pool.
	Close() error
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// connectionErrorFragments identify connectivity failures across the
// postgres and duckdb drivers, which expose no shared error type.
var connectionErrorFragments = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"bad connection",
	"database is closed",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"the database system is starting up",
}

// IsConnectionError reports whether an error indicates the store is
// unreachable rather than the statement being wrong. The dedup engine
// degrades these to "not found"; the pipeline spools writes on them.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, fragment := range connectionErrorFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// constraintErrorFragments identify integrity violations.
var constraintErrorFragments = []string{
	"duplicate key value",
	"violates unique constraint",
	"violates foreign key constraint",
	"violates not-null constraint",
	"violates check constraint",
	"constraint error",
	"unique constraint",
}

// IsConstraintError reports whether an error is an integrity violation
// raised by the store. These are fatal to the specific write attempt
// and never retried blindly.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range constraintErrorFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/dbvigil/dbvigil/internal/logging"
	"github.com/dbvigil/dbvigil/internal/sqlgen"
	"github.com/dbvigil/dbvigil/internal/testinfra"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := testinfra.StartPostgres(ctx, t)

	s, err := NewPostgresStore(ctx, DefaultPostgresConfig(dsn), logging.Nop())
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	defer s.Close()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if err := Bootstrap(ctx, s, false, logging.Nop()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	executed := time.Now().UTC().Truncate(time.Microsecond)
	query, args, err := sqlgen.Render(sqlgen.InsertQueryPerformance{
		ExecutedAt:      executed,
		DBID:            "prod-1",
		QueryHash:       "abc123",
		ExecutionTimeMs: 412.5,
		Fingerprint:     "fp-roundtrip",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	affected, err := s.Exec(ctx, query, args...)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if affected != 1 {
		t.Errorf("first insert affected %d rows, want 1", affected)
	}

	// Same fingerprint again: ON CONFLICT DO NOTHING reports zero rows.
	affected, err = s.Exec(ctx, query, args...)
	if err != nil {
		t.Fatalf("duplicate Exec() error = %v", err)
	}
	if affected != 0 {
		t.Errorf("duplicate insert affected %d rows, want 0", affected)
	}

	// Existence probe finds the row inside the lookback window.
	probe, probeArgs, err := sqlgen.Render(sqlgen.FingerprintExists{
		Hypertable:  "query_performance",
		TimeColumn:  "executed_at",
		Fingerprint: "fp-roundtrip",
		Cutoff:      executed.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Render(probe) error = %v", err)
	}
	value, err := s.QueryValue(ctx, probe, probeArgs...)
	if err != nil {
		t.Fatalf("QueryValue() error = %v", err)
	}
	if value == nil {
		t.Error("existence probe found nothing for a stored fingerprint")
	}
}

func TestPostgresStoreQueryValueAbsent(t *testing.T) {
	ctx := context.Background()
	dsn := testinfra.StartPostgres(ctx, t)

	s, err := NewPostgresStore(ctx, DefaultPostgresConfig(dsn), logging.Nop())
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	defer s.Close()

	if err := Bootstrap(ctx, s, false, logging.Nop()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	// EXISTS always yields a row; an absent fingerprint scans as false.
	probe, args, err := sqlgen.Render(sqlgen.FingerprintExists{
		Hypertable:  "system_health",
		TimeColumn:  "timestamp",
		Fingerprint: "never-stored",
		Cutoff:      time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	value, err := s.QueryValue(ctx, probe, args...)
	if err != nil {
		t.Fatalf("QueryValue() error = %v", err)
	}
	if exists, ok := value.(bool); !ok || exists {
		t.Errorf("QueryValue() = %v (%T) for absent fingerprint, want false", value, value)
	}

	// MAX over an empty table scans as SQL NULL, which surfaces as nil.
	sync, syncArgs, err := sqlgen.Render(sqlgen.LastSyncTime{
		Hypertable: "table_statistics",
		TimeColumn: "recorded_at",
		DBID:       "prod-1",
	})
	if err != nil {
		t.Fatalf("Render(sync) error = %v", err)
	}
	value, err = s.QueryValue(ctx, sync, syncArgs...)
	if err != nil {
		t.Fatalf("QueryValue(sync) error = %v", err)
	}
	if value != nil {
		t.Errorf("QueryValue(sync) = %v on empty table, want nil", value)
	}
}

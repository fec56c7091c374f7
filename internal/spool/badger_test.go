// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

//go:build spool

package spool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/observation"
)

func openTestSpool(t *testing.T) *BadgerSpool {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	sp, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = sp.Close() })
	return sp
}

func testEntry(t *testing.T, hypertable string) Entry {
	t.Helper()
	entry, err := NewEntry(hypertable, "fp-"+hypertable, observation.Observation{
		"event_type": "system_health",
		"db_id":      "prod-1",
	})
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	return entry
}

func TestBadgerSpoolAppendPendingConfirm(t *testing.T) {
	sp := openTestSpool(t)
	ctx := context.Background()

	entry := testEntry(t, "system_health")
	if err := sp.Append(ctx, entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	pending, err := sp.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Pending() returned %d entries, want 1", len(pending))
	}
	if pending[0].ID != entry.ID {
		t.Errorf("pending ID = %q, want %q", pending[0].ID, entry.ID)
	}
	if pending[0].Hypertable != "system_health" {
		t.Errorf("pending hypertable = %q", pending[0].Hypertable)
	}

	if err := sp.Confirm(ctx, entry.ID); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	pending, err = sp.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() after confirm error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Pending() after confirm = %d entries, want 0", len(pending))
	}
}

func TestBadgerSpoolConfirmUnknownEntry(t *testing.T) {
	sp := openTestSpool(t)
	err := sp.Confirm(context.Background(), "no-such-id")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Confirm(unknown) error = %v, want ErrEntryNotFound", err)
	}
}

func TestBadgerSpoolPendingOldestFirst(t *testing.T) {
	sp := openTestSpool(t)
	ctx := context.Background()

	first := testEntry(t, "query_performance")
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	second := testEntry(t, "table_statistics")
	second.CreatedAt = time.Now().UTC().Add(-time.Hour)

	// Append in reverse order; Pending must still sort oldest first.
	if err := sp.Append(ctx, second); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := sp.Append(ctx, first); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	pending, err := sp.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Pending() returned %d entries, want 2", len(pending))
	}
	if pending[0].ID != first.ID {
		t.Errorf("pending[0].ID = %q, want oldest entry %q", pending[0].ID, first.ID)
	}
}

func TestBadgerSpoolSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false
	ctx := context.Background()

	sp, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	entry := testEntry(t, "index_analytics")
	if err := sp.Append(ctx, entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := sp.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	pending, err := reopened.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != entry.ID {
		t.Errorf("reopened spool lost the journaled entry: %+v", pending)
	}
}

func TestBadgerSpoolClosedGuard(t *testing.T) {
	sp := openTestSpool(t)
	if err := sp.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sp.Append(context.Background(), testEntry(t, "system_health")); !errors.Is(err, ErrSpoolClosed) {
		t.Errorf("Append() after close error = %v, want ErrSpoolClosed", err)
	}
	if _, err := sp.Pending(context.Background()); !errors.Is(err, ErrSpoolClosed) {
		t.Errorf("Pending() after close error = %v, want ErrSpoolClosed", err)
	}
}

func TestBadgerSpoolStats(t *testing.T) {
	sp := openTestSpool(t)
	ctx := context.Background()

	if err := sp.Append(ctx, testEntry(t, "system_health")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := sp.Append(ctx, testEntry(t, "agent_actions")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	stats := sp.Stats()
	if stats.TotalAppends != 2 {
		t.Errorf("TotalAppends = %d, want 2", stats.TotalAppends)
	}
	if stats.Pending != 2 {
		t.Errorf("Pending = %d, want 2", stats.Pending)
	}
}

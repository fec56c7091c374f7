// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/observation"
)

// fakeOracle records every query and returns a fixed value or error.
type fakeOracle struct {
	mu      sync.Mutex
	value   any
	err     error
	calls   int
	queries []string
	args    [][]any
}

func (f *fakeOracle) QueryValue(_ context.Context, query string, args ...any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	if f.err != nil {
		return nil, f.err
	}
	return f.value, nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeOracle) lastQuery() (string, []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return "", nil
	}
	return f.queries[len(f.queries)-1], f.args[len(f.args)-1]
}

func newTestEngine(t *testing.T, oracle Oracle, cfg Config) *Engine {
	t.Helper()
	engine, err := NewEngine(oracle, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

// TestAlreadyExistsConsultsOracleOnce tests that a verdict is cached
// after the first miss.
func TestAlreadyExistsConsultsOracleOnce(t *testing.T) {
	oracle := &fakeOracle{value: false}
	engine := newTestEngine(t, oracle, Config{})
	ctx := context.Background()

	if engine.AlreadyExists(ctx, "fp", "system_health", 0) {
		t.Error("fresh fingerprint should not exist")
	}
	if engine.AlreadyExists(ctx, "fp", "system_health", 0) {
		t.Error("cached verdict should still be false")
	}
	if got := oracle.callCount(); got != 1 {
		t.Errorf("oracle calls: expected 1, got %d", got)
	}
}

// TestAlreadyExistsCachesPositiveVerdict tests the duplicate path.
func TestAlreadyExistsCachesPositiveVerdict(t *testing.T) {
	oracle := &fakeOracle{value: true}
	engine := newTestEngine(t, oracle, Config{})
	ctx := context.Background()

	if !engine.AlreadyExists(ctx, "fp", "system_health", 0) {
		t.Error("oracle says the fingerprint exists")
	}
	if !engine.AlreadyExists(ctx, "fp", "system_health", 0) {
		t.Error("cached verdict should still be true")
	}
	if got := oracle.callCount(); got != 1 {
		t.Errorf("oracle calls: expected 1, got %d", got)
	}
}

// TestAlreadyExistsOracleFailure tests that failures read as absent
// and are never cached.
func TestAlreadyExistsOracleFailure(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("connection refused")}
	engine := newTestEngine(t, oracle, Config{})
	ctx := context.Background()

	if engine.AlreadyExists(ctx, "fp", "system_health", 0) {
		t.Error("oracle failure should read as absent")
	}
	if engine.AlreadyExists(ctx, "fp", "system_health", 0) {
		t.Error("oracle failure should read as absent")
	}
	if got := oracle.callCount(); got != 2 {
		t.Errorf("failed verdicts must not be cached, calls = %d", got)
	}
}

// TestAlreadyExistsProbeShape tests the rendered probe and its
// parameters.
func TestAlreadyExistsProbeShape(t *testing.T) {
	oracle := &fakeOracle{value: false}
	engine := newTestEngine(t, oracle, Config{})

	before := time.Now().UTC()
	engine.AlreadyExists(context.Background(), "fp", "query_performance", 2*time.Hour)

	query, args := oracle.lastQuery()
	if !strings.Contains(query, "_agentic.query_performance") {
		t.Errorf("probe should target the hypertable: %q", query)
	}
	if !strings.Contains(query, "executed_at > $2") {
		t.Errorf("probe should filter on the table's time column: %q", query)
	}

	if len(args) != 2 {
		t.Fatalf("args: expected 2, got %d", len(args))
	}
	if args[0] != "fp" {
		t.Errorf("args[0]: expected fingerprint, got %v", args[0])
	}

	cutoff, ok := args[1].(time.Time)
	if !ok {
		t.Fatalf("args[1] should be a cutoff time, got %T", args[1])
	}
	wantLow := before.Add(-2*time.Hour - time.Second)
	wantHigh := before.Add(-2*time.Hour + time.Second)
	if cutoff.Before(wantLow) || cutoff.After(wantHigh) {
		t.Errorf("cutoff %v not within the 2h lookback window", cutoff)
	}
}

// TestAlreadyExistsRejectsUnknownHypertable tests that an unlisted
// table never reaches the oracle.
func TestAlreadyExistsRejectsUnknownHypertable(t *testing.T) {
	oracle := &fakeOracle{value: true}
	engine := newTestEngine(t, oracle, Config{})

	if engine.AlreadyExists(context.Background(), "fp", "users", 0) {
		t.Error("unknown hypertable should read as absent")
	}
	if got := oracle.callCount(); got != 0 {
		t.Errorf("oracle must not be consulted for unknown tables, calls = %d", got)
	}
}

// TestShouldInsertRoundTrip tests the admit-then-mark cycle.
func TestShouldInsertRoundTrip(t *testing.T) {
	oracle := &fakeOracle{value: false}
	engine := newTestEngine(t, oracle, Config{})
	ctx := context.Background()

	obs := observation.Observation{
		"db_id":      "db1",
		"table_name": "orders",
		"event_type": "slow_query",
		"timestamp":  "2024-01-01T10:03:30Z",
		"query_hash": "abc123",
	}

	insert, fingerprint := engine.ShouldInsert(ctx, obs, "query_performance", 0)
	if !insert {
		t.Fatal("fresh observation should be admitted")
	}
	if len(fingerprint) != 64 {
		t.Fatalf("fingerprint should be 64 hex chars, got %d", len(fingerprint))
	}

	engine.MarkInserted(fingerprint, "query_performance")

	insert, again := engine.ShouldInsert(ctx, obs, "query_performance", 0)
	if insert {
		t.Error("marked observation should be refused")
	}
	if again != fingerprint {
		t.Error("fingerprint must be stable across calls")
	}
	if got := oracle.callCount(); got != 1 {
		t.Errorf("mark should short-circuit the oracle, calls = %d", got)
	}
}

// TestMarkInsertedWithoutPriorLookup tests seeding the cache directly.
func TestMarkInsertedWithoutPriorLookup(t *testing.T) {
	oracle := &fakeOracle{value: false}
	engine := newTestEngine(t, oracle, Config{})

	engine.MarkInserted("fp", "table_statistics")

	if !engine.AlreadyExists(context.Background(), "fp", "table_statistics", 0) {
		t.Error("marked fingerprint should exist")
	}
	if got := oracle.callCount(); got != 0 {
		t.Errorf("oracle calls: expected 0, got %d", got)
	}
}

// TestLastSyncTime tests the resume read in all three outcomes.
func TestLastSyncTime(t *testing.T) {
	ctx := context.Background()
	synced := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	t.Run("value present", func(t *testing.T) {
		oracle := &fakeOracle{value: synced}
		engine := newTestEngine(t, oracle, Config{})

		ts, ok, err := engine.LastSyncTime(ctx, "db1", "table_statistics")
		if err != nil {
			t.Fatalf("LastSyncTime failed: %v", err)
		}
		if !ok || !ts.Equal(synced) {
			t.Errorf("expected %v, got (%v, %v)", synced, ts, ok)
		}

		query, args := oracle.lastQuery()
		if !strings.Contains(query, "MAX(recorded_at)") {
			t.Errorf("query should take MAX of the time column: %q", query)
		}
		if len(args) != 1 || args[0] != "db1" {
			t.Errorf("args: expected [db1], got %v", args)
		}
	})

	t.Run("no prior sync", func(t *testing.T) {
		oracle := &fakeOracle{value: nil}
		engine := newTestEngine(t, oracle, Config{})

		_, ok, err := engine.LastSyncTime(ctx, "db1", "table_statistics")
		if err != nil {
			t.Fatalf("LastSyncTime failed: %v", err)
		}
		if ok {
			t.Error("empty hypertable should report no prior sync")
		}
	})

	t.Run("store error", func(t *testing.T) {
		oracle := &fakeOracle{err: errors.New("timeout")}
		engine := newTestEngine(t, oracle, Config{})

		if _, _, err := engine.LastSyncTime(ctx, "db1", "table_statistics"); err == nil {
			t.Error("store errors should propagate")
		}
	})
}

// TestClearCache tests that clearing forces a fresh oracle consult.
func TestClearCache(t *testing.T) {
	oracle := &fakeOracle{value: true}
	engine := newTestEngine(t, oracle, Config{})
	ctx := context.Background()

	engine.AlreadyExists(ctx, "fp", "system_health", 0)
	engine.ClearCache()
	engine.AlreadyExists(ctx, "fp", "system_health", 0)

	if got := oracle.callCount(); got != 2 {
		t.Errorf("oracle calls after clear: expected 2, got %d", got)
	}
}

// TestCleanupCache tests the TTL sweep through the engine surface.
func TestCleanupCache(t *testing.T) {
	oracle := &fakeOracle{value: false}
	engine := newTestEngine(t, oracle, Config{CacheTTL: 10 * time.Millisecond})
	ctx := context.Background()

	engine.AlreadyExists(ctx, "fp1", "system_health", 0)
	engine.AlreadyExists(ctx, "fp2", "system_health", 0)
	time.Sleep(25 * time.Millisecond)

	if removed := engine.CleanupCache(); removed != 2 {
		t.Errorf("CleanupCache: expected 2, got %d", removed)
	}
	if got := engine.CacheStats().Entries; got != 0 {
		t.Errorf("entries after sweep: expected 0, got %d", got)
	}
}

// TestEngineBucketInterval tests construction defaults and runtime
// changes.
func TestEngineBucketInterval(t *testing.T) {
	engine := newTestEngine(t, &fakeOracle{}, Config{})
	if got := engine.BucketInterval(); got != DefaultBucketMinutes {
		t.Errorf("default bucket width: expected %d, got %d", DefaultBucketMinutes, got)
	}

	if err := engine.SetBucketInterval(10); err != nil {
		t.Fatalf("SetBucketInterval failed: %v", err)
	}
	if got := engine.BucketInterval(); got != 10 {
		t.Errorf("bucket width: expected 10, got %d", got)
	}

	if err := engine.SetBucketInterval(0); !errors.Is(err, ErrInvalidBucketInterval) {
		t.Errorf("expected ErrInvalidBucketInterval, got %v", err)
	}

	if _, err := NewEngine(&fakeOracle{}, Config{BucketMinutes: 61}, zerolog.Nop()); !errors.Is(err, ErrInvalidBucketInterval) {
		t.Errorf("NewEngine with width 61: expected ErrInvalidBucketInterval, got %v", err)
	}
}

// TestTimeColumn tests the hypertable time-column map.
func TestTimeColumn(t *testing.T) {
	tests := []struct {
		hypertable string
		want       string
	}{
		{hypertable: "schema_metadata", want: "captured_at"},
		{hypertable: "query_performance", want: "executed_at"},
		{hypertable: "index_analytics", want: "measured_at"},
		{hypertable: "table_statistics", want: "recorded_at"},
		{hypertable: "semantic_relationships", want: "discovered_at"},
		{hypertable: "system_health", want: "timestamp"},
		{hypertable: "data_quality_metrics", want: "measured_at"},
		{hypertable: "agent_actions", want: "executed_at"},
		{hypertable: "something_else", want: "timestamp"},
	}

	for _, tt := range tests {
		if got := TimeColumn(tt.hypertable); got != tt.want {
			t.Errorf("TimeColumn(%s): expected %s, got %s", tt.hypertable, tt.want, got)
		}
	}
}

// TestShouldInsertConcurrent tests parallel admission on distinct
// observations.
func TestShouldInsertConcurrent(t *testing.T) {
	oracle := &fakeOracle{value: false}
	engine := newTestEngine(t, oracle, Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for worker := 0; worker < 16; worker++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			obs := observation.Observation{
				"db_id":      "db1",
				"table_name": fmt.Sprintf("table_%d", id),
				"event_type": "table_stats",
				"timestamp":  "2024-01-01T10:00:00Z",
			}
			insert, fingerprint := engine.ShouldInsert(ctx, obs, "table_statistics", 0)
			if !insert {
				t.Errorf("worker %d: fresh observation refused", id)
			}
			engine.MarkInserted(fingerprint, "table_statistics")
		}(worker)
	}
	wg.Wait()

	if got := engine.CacheStats().Entries; got != 16 {
		t.Errorf("entries: expected 16, got %d", got)
	}
}

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import "fmt"

// Diagnostic intents run read-only against a monitored database. All
// of them are fixed statements; the only inputs are bind parameters.

const slowQueriesSQL = `SELECT query, mean_exec_time, calls, queryid
FROM pg_stat_statements
WHERE mean_exec_time > $1
ORDER BY mean_exec_time DESC
LIMIT $2`

// SlowQueries reads the slowest statements from pg_stat_statements.
type SlowQueries struct {
	// MinExecMs is the mean-execution-time floor in milliseconds.
	MinExecMs float64
	// Limit caps the number of rows returned.
	Limit int
}

func (s SlowQueries) Kind() Kind { return KindDiagnostic }

func (s SlowQueries) Validate() error {
	if s.MinExecMs < 0 {
		return fmt.Errorf("slow queries: negative threshold %v", s.MinExecMs)
	}
	if s.Limit < 1 {
		return fmt.Errorf("slow queries: limit must be positive, got %d", s.Limit)
	}
	return nil
}

func (s SlowQueries) SQL() string { return slowQueriesSQL }

func (s SlowQueries) Args() []any { return []any{s.MinExecMs, s.Limit} }

const tableStatsSQL = `SELECT schemaname, relname AS table_name, n_live_tup AS live_rows,
       n_dead_tup AS dead_rows, last_vacuum, last_autovacuum, last_analyze
FROM pg_stat_user_tables
WHERE schemaname = $1`

// TableStats reads row and vacuum statistics for every table in a
// schema.
type TableStats struct {
	Schema string
}

func (s TableStats) Kind() Kind { return KindDiagnostic }

func (s TableStats) Validate() error { return ValidIdentifier(s.Schema) }

func (s TableStats) SQL() string { return tableStatsSQL }

func (s TableStats) Args() []any { return []any{s.Schema} }

const indexUsageSQL = `SELECT schemaname, relname AS table_name, indexrelname AS index_name,
       idx_scan AS index_scans, idx_tup_read, idx_tup_fetch
FROM pg_stat_user_indexes
WHERE schemaname = $1
ORDER BY idx_scan DESC`

// IndexUsage reads per-index scan counters for a schema.
type IndexUsage struct {
	Schema string
}

func (s IndexUsage) Kind() Kind { return KindDiagnostic }

func (s IndexUsage) Validate() error { return ValidIdentifier(s.Schema) }

func (s IndexUsage) SQL() string { return indexUsageSQL }

func (s IndexUsage) Args() []any { return []any{s.Schema} }

const systemHealthProbeSQL = `SELECT COUNT(*) FILTER (WHERE state = 'active') AS active_connections,
       COUNT(*) FILTER (WHERE state = 'idle') AS idle_connections,
       COUNT(*) FILTER (WHERE wait_event IS NOT NULL) AS waiting_queries
FROM pg_stat_activity`

// SystemHealthProbe reads connection-state counts from
// pg_stat_activity.
type SystemHealthProbe struct{}

func (SystemHealthProbe) Kind() Kind { return KindDiagnostic }

func (SystemHealthProbe) Validate() error { return nil }

func (SystemHealthProbe) SQL() string { return systemHealthProbeSQL }

func (SystemHealthProbe) Args() []any { return nil }

const tableSizesSQL = `SELECT schemaname, tablename,
       pg_total_relation_size(schemaname || '.' || tablename) AS total_bytes,
       pg_relation_size(schemaname || '.' || tablename) AS table_bytes,
       pg_indexes_size(schemaname || '.' || tablename) AS index_bytes
FROM pg_tables
WHERE schemaname = $1`

// TableSizes reads on-disk sizes for every table in a schema.
type TableSizes struct {
	Schema string
}

func (s TableSizes) Kind() Kind { return KindDiagnostic }

func (s TableSizes) Validate() error { return ValidIdentifier(s.Schema) }

func (s TableSizes) SQL() string { return tableSizesSQL }

func (s TableSizes) Args() []any { return []any{s.Schema} }

const checkIndexExistsSQL = `SELECT EXISTS (
    SELECT 1 FROM pg_indexes
    WHERE schemaname = $1 AND tablename = $2 AND indexname = $3
)`

// CheckIndexExists reports whether a named index is present.
type CheckIndexExists struct {
	Schema string
	Table  string
	Index  string
}

func (s CheckIndexExists) Kind() Kind { return KindDiagnostic }

func (s CheckIndexExists) Validate() error {
	return validIdentifiers(s.Schema, s.Table, s.Index)
}

func (s CheckIndexExists) SQL() string { return checkIndexExistsSQL }

func (s CheckIndexExists) Args() []any { return []any{s.Schema, s.Table, s.Index} }

const tableColumnsSQL = `SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// TableColumns reads the column definitions of one table.
type TableColumns struct {
	Schema string
	Table  string
}

func (s TableColumns) Kind() Kind { return KindDiagnostic }

func (s TableColumns) Validate() error { return validIdentifiers(s.Schema, s.Table) }

func (s TableColumns) SQL() string { return tableColumnsSQL }

func (s TableColumns) Args() []any { return []any{s.Schema, s.Table} }

const foreignKeysSQL = `SELECT tc.constraint_name,
       kcu.column_name,
       ccu.table_name AS foreign_table_name,
       ccu.column_name AS foreign_column_name
FROM information_schema.table_constraints AS tc
JOIN information_schema.key_column_usage AS kcu
  ON tc.constraint_name = kcu.constraint_name
JOIN information_schema.constraint_column_usage AS ccu
  ON ccu.constraint_name = tc.constraint_name
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = $1
  AND tc.table_name = $2`

// ForeignKeys reads the outbound foreign-key constraints of one table.
type ForeignKeys struct {
	Schema string
	Table  string
}

func (s ForeignKeys) Kind() Kind { return KindDiagnostic }

func (s ForeignKeys) Validate() error { return validIdentifiers(s.Schema, s.Table) }

func (s ForeignKeys) SQL() string { return foreignKeysSQL }

func (s ForeignKeys) Args() []any { return []any{s.Schema, s.Table} }

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// hypertableDDL creates the _agentic schema. Every hypertable carries
// its designated time column, a fingerprint column, and a unique index
// over (fingerprint, time column) so replays collapse under ON
// CONFLICT DO NOTHING even when the dedup cache missed them.
var hypertableDDL = []string{
	`CREATE SCHEMA IF NOT EXISTS _agentic`,

	`CREATE TABLE IF NOT EXISTS _agentic.schema_metadata (
		captured_at TIMESTAMP NOT NULL,
		db_id TEXT NOT NULL,
		table_name TEXT,
		definition TEXT,
		fingerprint TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS schema_metadata_fp_idx
		ON _agentic.schema_metadata (fingerprint, captured_at)`,

	`CREATE TABLE IF NOT EXISTS _agentic.query_performance (
		executed_at TIMESTAMP NOT NULL,
		db_id TEXT NOT NULL,
		query_hash TEXT,
		query_text TEXT,
		execution_time_ms DOUBLE PRECISION,
		rows_returned BIGINT,
		calls BIGINT,
		user_name TEXT,
		application_name TEXT,
		error_occurred BOOLEAN DEFAULT FALSE,
		fingerprint TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS query_performance_fp_idx
		ON _agentic.query_performance (fingerprint, executed_at)`,

	`CREATE TABLE IF NOT EXISTS _agentic.index_analytics (
		measured_at TIMESTAMP NOT NULL,
		db_id TEXT NOT NULL,
		table_name TEXT,
		index_name TEXT,
		index_type TEXT,
		columns TEXT,
		size_bytes BIGINT,
		scans BIGINT,
		tuples_read BIGINT,
		tuples_fetched BIGINT,
		effectiveness_score DOUBLE PRECISION,
		fingerprint TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS index_analytics_fp_idx
		ON _agentic.index_analytics (fingerprint, measured_at)`,

	`CREATE TABLE IF NOT EXISTS _agentic.table_statistics (
		recorded_at TIMESTAMP NOT NULL,
		db_id TEXT NOT NULL,
		table_name TEXT,
		schema_name TEXT,
		total_rows BIGINT,
		live_rows BIGINT,
		dead_rows BIGINT,
		table_size_bytes BIGINT,
		index_size_bytes BIGINT,
		last_vacuum TIMESTAMP,
		last_analyze TIMESTAMP,
		seq_scans BIGINT,
		index_scans BIGINT,
		fingerprint TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS table_statistics_fp_idx
		ON _agentic.table_statistics (fingerprint, recorded_at)`,

	`CREATE TABLE IF NOT EXISTS _agentic.semantic_relationships (
		discovered_at TIMESTAMP NOT NULL,
		db_id TEXT NOT NULL,
		source_table TEXT,
		source_column TEXT,
		target_table TEXT,
		target_column TEXT,
		relationship_type TEXT,
		confidence DOUBLE PRECISION,
		fingerprint TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS semantic_relationships_fp_idx
		ON _agentic.semantic_relationships (fingerprint, discovered_at)`,

	`CREATE TABLE IF NOT EXISTS _agentic.system_health (
		timestamp TIMESTAMP NOT NULL,
		db_id TEXT NOT NULL,
		cpu_usage DOUBLE PRECISION,
		memory_usage DOUBLE PRECISION,
		active_connections BIGINT,
		idle_connections BIGINT,
		waiting_queries BIGINT,
		fingerprint TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS system_health_fp_idx
		ON _agentic.system_health (fingerprint, timestamp)`,

	`CREATE TABLE IF NOT EXISTS _agentic.data_quality_metrics (
		measured_at TIMESTAMP NOT NULL,
		db_id TEXT NOT NULL,
		table_name TEXT,
		column_name TEXT,
		null_count BIGINT,
		null_percentage DOUBLE PRECISION,
		distinct_count BIGINT,
		cardinality_ratio DOUBLE PRECISION,
		anomaly_score DOUBLE PRECISION,
		fingerprint TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS data_quality_metrics_fp_idx
		ON _agentic.data_quality_metrics (fingerprint, measured_at)`,

	`CREATE TABLE IF NOT EXISTS _agentic.agent_actions (
		executed_at TIMESTAMP NOT NULL,
		db_id TEXT NOT NULL,
		agent_name TEXT,
		action_type TEXT,
		action_details TEXT,
		sql_executed TEXT,
		success BOOLEAN DEFAULT FALSE,
		impact_score DOUBLE PRECISION,
		performance_delta DOUBLE PRECISION,
		rollback_available BOOLEAN DEFAULT FALSE,
		rollback_sql TEXT,
		fingerprint TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS agent_actions_fp_idx
		ON _agentic.agent_actions (fingerprint, executed_at)`,
}

// timescaleHypertables converts the plain tables into hypertables when
// the Timescale extension is installed. Best effort: plain tables work
// too, they just partition worse.
var timescaleHypertables = []struct {
	table      string
	timeColumn string
}{
	{"schema_metadata", "captured_at"},
	{"query_performance", "executed_at"},
	{"index_analytics", "measured_at"},
	{"table_statistics", "recorded_at"},
	{"semantic_relationships", "discovered_at"},
	{"system_health", "timestamp"},
	{"data_quality_metrics", "measured_at"},
	{"agent_actions", "executed_at"},
}

// Bootstrap creates the agent schema idempotently. With timescale set
// it also promotes each table to a hypertable; promotion failures are
// logged and skipped because the extension may simply be absent.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Bootstrap(ctx context.Context, s Store, timescale bool, logger zerolog.Logger) error {
	for _, ddl := range hypertableDDL {
		if _, err := s.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}

	if timescale {
		for _, ht := range timescaleHypertables {
			query := fmt.Sprintf(
				"SELECT create_hypertable('_agentic.%s', '%s', if_not_exists => TRUE, migrate_data => TRUE)",
				ht.table, ht.timeColumn,
			)
			if _, err := s.QueryValue(ctx, query); err != nil {
				logger.Warn().Err(err).
					Str("hypertable", ht.table).
					Msg("timescale promotion skipped")
			}
		}
	}

	logger.Info().Int("statements", len(hypertableDDL)).Msg("store schema bootstrapped")
	return nil
}

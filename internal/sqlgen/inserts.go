// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import (
	"fmt"
	"time"
)

// Insert intents write one observation row each. Every hypertable
// carries a fingerprint column and a unique index over (fingerprint,
// time column), so ON CONFLICT DO NOTHING turns a replayed row into a
// zero-rows-affected no-op instead of an error.

// checkInsertBasics enforces the fields every insert must carry.
func checkInsertBasics(ts time.Time, dbID, fingerprint, table string) error {
	if ts.IsZero() {
		return fmt.Errorf("insert %s: zero timestamp", table)
	}
	if dbID == "" {
		return fmt.Errorf("insert %s: empty db_id", table)
	}
	if fingerprint == "" {
		return fmt.Errorf("insert %s: empty fingerprint", table)
	}
	return nil
}

const insertQueryPerformanceSQL = `INSERT INTO _agentic.query_performance (
    executed_at, db_id, query_hash, query_text, execution_time_ms, rows_returned,
    calls, user_name, application_name, error_occurred, fingerprint
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT DO NOTHING`

// InsertQueryPerformance records one slow-query measurement.
type InsertQueryPerformance struct {
	ExecutedAt      time.Time
	DBID            string
	QueryHash       string
	QueryText       string
	ExecutionTimeMs float64
	RowsReturned    int64
	Calls           int64
	UserName        string
	ApplicationName string
	ErrorOccurred   bool
	Fingerprint     string
}

func (s InsertQueryPerformance) Kind() Kind { return KindInsert }

func (s InsertQueryPerformance) Validate() error {
	return checkInsertBasics(s.ExecutedAt, s.DBID, s.Fingerprint, "query_performance")
}

func (s InsertQueryPerformance) SQL() string { return insertQueryPerformanceSQL }

func (s InsertQueryPerformance) Args() []any {
	return []any{
		s.ExecutedAt, s.DBID, s.QueryHash, s.QueryText, s.ExecutionTimeMs,
		s.RowsReturned, s.Calls, s.UserName, s.ApplicationName, s.ErrorOccurred,
		s.Fingerprint,
	}
}

const insertSystemHealthSQL = `INSERT INTO _agentic.system_health (
    timestamp, db_id, cpu_usage, memory_usage, active_connections,
    idle_connections, waiting_queries, fingerprint
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT DO NOTHING`

// InsertSystemHealth records one system-health sample.
type InsertSystemHealth struct {
	Timestamp         time.Time
	DBID              string
	CPUUsage          float64
	MemoryUsage       float64
	ActiveConnections int64
	IdleConnections   int64
	WaitingQueries    int64
	Fingerprint       string
}

func (s InsertSystemHealth) Kind() Kind { return KindInsert }

func (s InsertSystemHealth) Validate() error {
	return checkInsertBasics(s.Timestamp, s.DBID, s.Fingerprint, "system_health")
}

func (s InsertSystemHealth) SQL() string { return insertSystemHealthSQL }

func (s InsertSystemHealth) Args() []any {
	return []any{
		s.Timestamp, s.DBID, s.CPUUsage, s.MemoryUsage, s.ActiveConnections,
		s.IdleConnections, s.WaitingQueries, s.Fingerprint,
	}
}

const insertTableStatisticsSQL = `INSERT INTO _agentic.table_statistics (
    recorded_at, db_id, table_name, schema_name, total_rows, live_rows, dead_rows,
    table_size_bytes, index_size_bytes, last_vacuum, last_analyze, seq_scans,
    index_scans, fingerprint
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT DO NOTHING`

// InsertTableStatistics records one table-statistics sample. LastVacuum
// and LastAnalyze are nil when the table has never been vacuumed or
// analyzed.
type InsertTableStatistics struct {
	RecordedAt     time.Time
	DBID           string
	TableName      string
	SchemaName     string
	TotalRows      int64
	LiveRows       int64
	DeadRows       int64
	TableSizeBytes int64
	IndexSizeBytes int64
	LastVacuum     *time.Time
	LastAnalyze    *time.Time
	SeqScans       int64
	IndexScans     int64
	Fingerprint    string
}

func (s InsertTableStatistics) Kind() Kind { return KindInsert }

func (s InsertTableStatistics) Validate() error {
	return checkInsertBasics(s.RecordedAt, s.DBID, s.Fingerprint, "table_statistics")
}

func (s InsertTableStatistics) SQL() string { return insertTableStatisticsSQL }

func (s InsertTableStatistics) Args() []any {
	return []any{
		s.RecordedAt, s.DBID, s.TableName, s.SchemaName, s.TotalRows, s.LiveRows,
		s.DeadRows, s.TableSizeBytes, s.IndexSizeBytes, s.LastVacuum, s.LastAnalyze,
		s.SeqScans, s.IndexScans, s.Fingerprint,
	}
}

const insertIndexAnalyticsSQL = `INSERT INTO _agentic.index_analytics (
    measured_at, db_id, table_name, index_name, index_type, columns, size_bytes,
    scans, tuples_read, tuples_fetched, effectiveness_score, fingerprint
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT DO NOTHING`

// InsertIndexAnalytics records one index-usage measurement. Columns is
// the comma-joined column list as reported by the analyzer.
type InsertIndexAnalytics struct {
	MeasuredAt         time.Time
	DBID               string
	TableName          string
	IndexName          string
	IndexType          string
	Columns            string
	SizeBytes          int64
	Scans              int64
	TuplesRead         int64
	TuplesFetched      int64
	EffectivenessScore float64
	Fingerprint        string
}

func (s InsertIndexAnalytics) Kind() Kind { return KindInsert }

func (s InsertIndexAnalytics) Validate() error {
	return checkInsertBasics(s.MeasuredAt, s.DBID, s.Fingerprint, "index_analytics")
}

func (s InsertIndexAnalytics) SQL() string { return insertIndexAnalyticsSQL }

func (s InsertIndexAnalytics) Args() []any {
	return []any{
		s.MeasuredAt, s.DBID, s.TableName, s.IndexName, s.IndexType, s.Columns,
		s.SizeBytes, s.Scans, s.TuplesRead, s.TuplesFetched, s.EffectivenessScore,
		s.Fingerprint,
	}
}

const insertSemanticRelationshipSQL = `INSERT INTO _agentic.semantic_relationships (
    discovered_at, db_id, source_table, source_column, target_table, target_column,
    relationship_type, confidence, fingerprint
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT DO NOTHING`

// InsertSemanticRelationship records one discovered relationship
// between columns of the monitored schema.
type InsertSemanticRelationship struct {
	DiscoveredAt     time.Time
	DBID             string
	SourceTable      string
	SourceColumn     string
	TargetTable      string
	TargetColumn     string
	RelationshipType string
	Confidence       float64
	Fingerprint      string
}

func (s InsertSemanticRelationship) Kind() Kind { return KindInsert }

func (s InsertSemanticRelationship) Validate() error {
	return checkInsertBasics(s.DiscoveredAt, s.DBID, s.Fingerprint, "semantic_relationships")
}

func (s InsertSemanticRelationship) SQL() string { return insertSemanticRelationshipSQL }

func (s InsertSemanticRelationship) Args() []any {
	return []any{
		s.DiscoveredAt, s.DBID, s.SourceTable, s.SourceColumn, s.TargetTable,
		s.TargetColumn, s.RelationshipType, s.Confidence, s.Fingerprint,
	}
}

const insertAgentActionSQL = `INSERT INTO _agentic.agent_actions (
    executed_at, db_id, agent_name, action_type, action_details, sql_executed,
    success, impact_score, performance_delta, rollback_available, rollback_sql,
    fingerprint
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT DO NOTHING`

// InsertAgentAction records one action an agent executed against a
// monitored database. PerformanceDelta and RollbackSQL are nil when
// not yet measured or not applicable.
type InsertAgentAction struct {
	ExecutedAt        time.Time
	DBID              string
	AgentName         string
	ActionType        string
	ActionDetails     string
	SQLExecuted       string
	Success           bool
	ImpactScore       float64
	PerformanceDelta  *float64
	RollbackAvailable bool
	RollbackSQL       *string
	Fingerprint       string
}

func (s InsertAgentAction) Kind() Kind { return KindInsert }

func (s InsertAgentAction) Validate() error {
	return checkInsertBasics(s.ExecutedAt, s.DBID, s.Fingerprint, "agent_actions")
}

func (s InsertAgentAction) SQL() string { return insertAgentActionSQL }

func (s InsertAgentAction) Args() []any {
	return []any{
		s.ExecutedAt, s.DBID, s.AgentName, s.ActionType, s.ActionDetails,
		s.SQLExecuted, s.Success, s.ImpactScore, s.PerformanceDelta,
		s.RollbackAvailable, s.RollbackSQL, s.Fingerprint,
	}
}

const insertDataQualitySQL = `INSERT INTO _agentic.data_quality_metrics (
    measured_at, db_id, table_name, column_name, null_count, null_percentage,
    distinct_count, cardinality_ratio, anomaly_score, fingerprint
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT DO NOTHING`

// InsertDataQuality records one column-level quality measurement.
type InsertDataQuality struct {
	MeasuredAt       time.Time
	DBID             string
	TableName        string
	ColumnName       string
	NullCount        int64
	NullPercentage   float64
	DistinctCount    int64
	CardinalityRatio float64
	AnomalyScore     float64
	Fingerprint      string
}

func (s InsertDataQuality) Kind() Kind { return KindInsert }

func (s InsertDataQuality) Validate() error {
	return checkInsertBasics(s.MeasuredAt, s.DBID, s.Fingerprint, "data_quality_metrics")
}

func (s InsertDataQuality) SQL() string { return insertDataQualitySQL }

func (s InsertDataQuality) Args() []any {
	return []any{
		s.MeasuredAt, s.DBID, s.TableName, s.ColumnName, s.NullCount,
		s.NullPercentage, s.DistinctCount, s.CardinalityRatio, s.AnomalyScore,
		s.Fingerprint,
	}
}

const insertSchemaMetadataSQL = `INSERT INTO _agentic.schema_metadata (
    captured_at, db_id, table_name, definition, fingerprint
) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING`

// InsertSchemaMetadata records one captured table definition.
type InsertSchemaMetadata struct {
	CapturedAt  time.Time
	DBID        string
	TableName   string
	Definition  string
	Fingerprint string
}

func (s InsertSchemaMetadata) Kind() Kind { return KindInsert }

func (s InsertSchemaMetadata) Validate() error {
	return checkInsertBasics(s.CapturedAt, s.DBID, s.Fingerprint, "schema_metadata")
}

func (s InsertSchemaMetadata) SQL() string { return insertSchemaMetadataSQL }

func (s InsertSchemaMetadata) Args() []any {
	return []any{s.CapturedAt, s.DBID, s.TableName, s.Definition, s.Fingerprint}
}

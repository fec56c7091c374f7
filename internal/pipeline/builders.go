// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package pipeline

import (
	"fmt"
	"time"

	"github.com/dbvigil/dbvigil/internal/observation"
	"github.com/dbvigil/dbvigil/internal/sqlgen"
)

// builders turn an admitted observation into the typed insert intent of
// its hypertable. Missing optional fields become zero values; the
// intent's own Validate catches missing required ones.
var builders = map[string]func(obs observation.Observation, ts time.Time, fingerprint string) sqlgen.Statement{
	"query_performance": func(obs observation.Observation, ts time.Time, fp string) sqlgen.Statement {
		queryHash, _ := obs.Field(observation.FieldQueryHash)
		queryText, _ := obs.Field("query_text")
		userName, _ := obs.Field("user_name")
		appName, _ := obs.Field("application_name")
		return sqlgen.InsertQueryPerformance{
			ExecutedAt:      ts,
			DBID:            obs.DBID(),
			QueryHash:       queryHash,
			QueryText:       queryText,
			ExecutionTimeMs: obs.Float("execution_time_ms"),
			RowsReturned:    obs.Int("rows_returned"),
			Calls:           obs.Int("calls"),
			UserName:        userName,
			ApplicationName: appName,
			ErrorOccurred:   obs.Bool("error_occurred"),
			Fingerprint:     fp,
		}
	},

	"system_health": func(obs observation.Observation, ts time.Time, fp string) sqlgen.Statement {
		return sqlgen.InsertSystemHealth{
			Timestamp:         ts,
			DBID:              obs.DBID(),
			CPUUsage:          obs.Float("cpu_usage"),
			MemoryUsage:       obs.Float("memory_usage"),
			ActiveConnections: obs.Int("active_connections"),
			IdleConnections:   obs.Int("idle_connections"),
			WaitingQueries:    obs.Int("waiting_queries"),
			Fingerprint:       fp,
		}
	},

	"table_statistics": func(obs observation.Observation, ts time.Time, fp string) sqlgen.Statement {
		tableName, _ := obs.Field(observation.FieldTableName)
		schemaName, _ := obs.Field("schema_name")
		return sqlgen.InsertTableStatistics{
			RecordedAt:     ts,
			DBID:           obs.DBID(),
			TableName:      tableName,
			SchemaName:     schemaName,
			TotalRows:      obs.Int("total_rows"),
			LiveRows:       obs.Int("live_rows"),
			DeadRows:       obs.Int("dead_rows"),
			TableSizeBytes: obs.Int("table_size_bytes"),
			IndexSizeBytes: obs.Int("index_size_bytes"),
			LastVacuum:     optionalTime(obs, "last_vacuum"),
			LastAnalyze:    optionalTime(obs, "last_analyze"),
			SeqScans:       obs.Int("seq_scans"),
			IndexScans:     obs.Int("index_scans"),
			Fingerprint:    fp,
		}
	},

	"index_analytics": func(obs observation.Observation, ts time.Time, fp string) sqlgen.Statement {
		tableName, _ := obs.Field(observation.FieldTableName)
		indexName, _ := obs.Field(observation.FieldIndexName)
		indexType, _ := obs.Field("index_type")
		columns, _ := obs.Field("columns")
		return sqlgen.InsertIndexAnalytics{
			MeasuredAt:         ts,
			DBID:               obs.DBID(),
			TableName:          tableName,
			IndexName:          indexName,
			IndexType:          indexType,
			Columns:            columns,
			SizeBytes:          obs.Int("size_bytes"),
			Scans:              obs.Int("scans"),
			TuplesRead:         obs.Int("tuples_read"),
			TuplesFetched:      obs.Int("tuples_fetched"),
			EffectivenessScore: obs.Float("effectiveness_score"),
			Fingerprint:        fp,
		}
	},

	"semantic_relationships": func(obs observation.Observation, ts time.Time, fp string) sqlgen.Statement {
		sourceTable, _ := obs.Field("source_table")
		sourceColumn, _ := obs.Field("source_column")
		targetTable, _ := obs.Field("target_table")
		targetColumn, _ := obs.Field("target_column")
		relType, _ := obs.Field("relationship_type")
		return sqlgen.InsertSemanticRelationship{
			DiscoveredAt:     ts,
			DBID:             obs.DBID(),
			SourceTable:      sourceTable,
			SourceColumn:     sourceColumn,
			TargetTable:      targetTable,
			TargetColumn:     targetColumn,
			RelationshipType: relType,
			Confidence:       obs.Float("confidence"),
			Fingerprint:      fp,
		}
	},

	"agent_actions": func(obs observation.Observation, ts time.Time, fp string) sqlgen.Statement {
		agentName, _ := obs.Field("agent_name")
		actionType, _ := obs.Field("action_type")
		actionDetails, _ := obs.Field("action_details")
		sqlExecuted, _ := obs.Field("sql_executed")
		return sqlgen.InsertAgentAction{
			ExecutedAt:        ts,
			DBID:              obs.DBID(),
			AgentName:         agentName,
			ActionType:        actionType,
			ActionDetails:     actionDetails,
			SQLExecuted:       sqlExecuted,
			Success:           obs.Bool("success"),
			ImpactScore:       obs.Float("impact_score"),
			PerformanceDelta:  optionalFloat(obs, "performance_delta"),
			RollbackAvailable: obs.Bool("rollback_available"),
			RollbackSQL:       optionalString(obs, "rollback_sql"),
			Fingerprint:       fp,
		}
	},

	"data_quality_metrics": func(obs observation.Observation, ts time.Time, fp string) sqlgen.Statement {
		tableName, _ := obs.Field(observation.FieldTableName)
		columnName, _ := obs.Field(observation.FieldColumnName)
		return sqlgen.InsertDataQuality{
			MeasuredAt:       ts,
			DBID:             obs.DBID(),
			TableName:        tableName,
			ColumnName:       columnName,
			NullCount:        obs.Int("null_count"),
			NullPercentage:   obs.Float("null_percentage"),
			DistinctCount:    obs.Int("distinct_count"),
			CardinalityRatio: obs.Float("cardinality_ratio"),
			AnomalyScore:     obs.Float("anomaly_score"),
			Fingerprint:      fp,
		}
	},

	"schema_metadata": func(obs observation.Observation, ts time.Time, fp string) sqlgen.Statement {
		tableName, _ := obs.Field(observation.FieldTableName)
		definition, _ := obs.Field("definition")
		return sqlgen.InsertSchemaMetadata{
			CapturedAt:  ts,
			DBID:        obs.DBID(),
			TableName:   tableName,
			Definition:  definition,
			Fingerprint: fp,
		}
	},
}

// buildInsert resolves the insert intent for a hypertable.
func buildInsert(hypertable string, obs observation.Observation, ts time.Time, fingerprint string) (sqlgen.Statement, error) {
	build, ok := builders[hypertable]
	if !ok {
		return nil, fmt.Errorf("no insert builder for hypertable %q", hypertable)
	}
	return build(obs, ts, fingerprint), nil
}

func optionalTime(obs observation.Observation, key string) *time.Time {
	if ts, ok := obs.Time(key); ok {
		return &ts
	}
	return nil
}

func optionalFloat(obs observation.Observation, key string) *float64 {
	if _, ok := obs[key]; !ok {
		return nil
	}
	f := obs.Float(key)
	return &f
}

func optionalString(obs observation.Observation, key string) *string {
	if s, ok := obs.Field(key); ok {
		return &s
	}
	return nil
}

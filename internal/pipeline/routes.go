// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package pipeline

// DefaultRoutes maps event types to their target hypertables. Config
// may override or extend the mapping; event types outside it are
// logged and dropped.
func DefaultRoutes() map[string]string {
	return map[string]string{
		"slow_query":            "query_performance",
		"system_health":         "system_health",
		"table_stats":           "table_statistics",
		"index_usage":           "index_analytics",
		"semantic_relationship": "semantic_relationships",
		"agent_action":          "agent_actions",
		"data_quality":          "data_quality_metrics",
		"schema_change":         "schema_metadata",
	}
}

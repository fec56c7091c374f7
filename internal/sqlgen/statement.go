// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import "sort"

// Schema is the dedicated schema holding the agent's hypertables on
// the analytics store.
const Schema = "_agentic"

// Kind classifies a statement intent. The set is closed; new kinds
// require a code change, which is the point.
type Kind int

const (
	// KindInsert writes one observation row into a hypertable.
	KindInsert Kind = iota
	// KindSync supports deduplication: existence probes and last-sync
	// reads against the hypertables.
	KindSync
	// KindDiagnostic reads statistics or metadata from a monitored
	// database.
	KindDiagnostic
	// KindMaintenance covers index creation and vacuum/analyze runs on
	// a monitored database.
	KindMaintenance
)

// String returns the metric-label form of the kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindSync:
		return "sync"
	case KindDiagnostic:
		return "diagnostic"
	case KindMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// Statement is a fully-parameterized SQL intent. Implementations are
// plain structs whose fields are the statement's only inputs.
type Statement interface {
	// Kind reports the statement family.
	Kind() Kind
	// Validate checks identifiers and required fields. It must be
	// called before SQL or Args are used; Render does this.
	Validate() error
	// SQL returns the statement text with positional placeholders.
	SQL() string
	// Args returns the bind parameters in placeholder order.
	Args() []any
}

// Render validates the intent, renders its SQL and re-checks the
// result against the safety gate. This is the only supported way to
// turn an intent into executable SQL.
func Render(st Statement) (string, []any, error) {
	if err := st.Validate(); err != nil {
		return "", nil, err
	}
	query := st.SQL()
	if err := ValidateSQL(query); err != nil {
		return "", nil, err
	}
	return query, st.Args(), nil
}

// hypertables is the closed set of tables the agent may write to.
var hypertables = map[string]struct{}{
	"schema_metadata":        {},
	"query_performance":      {},
	"index_analytics":        {},
	"table_statistics":       {},
	"semantic_relationships": {},
	"system_health":          {},
	"data_quality_metrics":   {},
	"agent_actions":          {},
}

// AllowedHypertable reports whether name is a known hypertable.
func AllowedHypertable(name string) bool {
	_, ok := hypertables[name]
	return ok
}

// Hypertables returns the allowed hypertable names in sorted order.
func Hypertables() []string {
	names := make([]string, 0, len(hypertables))
	for name := range hypertables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

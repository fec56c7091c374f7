// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import (
	"fmt"
	"strings"
)

// indexMethods is the closed set of access methods CreateIndex will
// accept.
var indexMethods = map[string]struct{}{
	"btree": {},
	"hash":  {},
	"gin":   {},
	"gist":  {},
	"brin":  {},
}

// CreateIndex builds an index on a monitored table. Identifiers are
// interpolated after validation; there are no bind parameters in DDL.
type CreateIndex struct {
	Schema  string
	Table   string
	Index   string
	Columns []string
	// Method selects the access method (btree, hash, gin, gist,
	// brin). Empty means the server default.
	Method string
	// Concurrent adds CONCURRENTLY so the build does not block
	// writes on the monitored table.
	Concurrent bool
}

func (s CreateIndex) Kind() Kind { return KindMaintenance }

func (s CreateIndex) Validate() error {
	if err := validIdentifiers(s.Schema, s.Table, s.Index); err != nil {
		return err
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("create index %s: no columns", s.Index)
	}
	if err := validIdentifiers(s.Columns...); err != nil {
		return err
	}
	if s.Method != "" {
		if _, ok := indexMethods[s.Method]; !ok {
			return fmt.Errorf("%w: index method %q", ErrUnsafeQuery, s.Method)
		}
	}
	return nil
}

func (s CreateIndex) SQL() string {
	var b strings.Builder
	b.WriteString("CREATE INDEX ")
	if s.Concurrent {
		b.WriteString("CONCURRENTLY ")
	}
	b.WriteString("IF NOT EXISTS ")
	b.WriteString(s.Index)
	b.WriteString(" ON ")
	b.WriteString(s.Schema)
	b.WriteByte('.')
	b.WriteString(s.Table)
	if s.Method != "" {
		b.WriteString(" USING ")
		b.WriteString(s.Method)
	}
	b.WriteString(" (")
	b.WriteString(strings.Join(s.Columns, ", "))
	b.WriteByte(')')
	return b.String()
}

func (s CreateIndex) Args() []any { return nil }

// VacuumTable runs VACUUM ANALYZE on one monitored table.
type VacuumTable struct {
	Schema string
	Table  string
}

func (s VacuumTable) Kind() Kind { return KindMaintenance }

func (s VacuumTable) Validate() error { return validIdentifiers(s.Schema, s.Table) }

func (s VacuumTable) SQL() string {
	return fmt.Sprintf("VACUUM ANALYZE %s.%s", s.Schema, s.Table)
}

func (s VacuumTable) Args() []any { return nil }

// AnalyzeTable refreshes planner statistics for one monitored table.
type AnalyzeTable struct {
	Schema string
	Table  string
}

func (s AnalyzeTable) Kind() Kind { return KindMaintenance }

func (s AnalyzeTable) Validate() error { return validIdentifiers(s.Schema, s.Table) }

func (s AnalyzeTable) SQL() string {
	return fmt.Sprintf("ANALYZE %s.%s", s.Schema, s.Table)
}

func (s AnalyzeTable) Args() []any { return nil }

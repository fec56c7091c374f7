// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import (
	"errors"
	"testing"
)

// TestValidateSQL tests the lexical safety gate.
func TestValidateSQL(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{
			name:    "simple select",
			query:   "SELECT 1",
			wantErr: false,
		},
		{
			name:    "insert into hypertable",
			query:   "INSERT INTO _agentic.system_health (timestamp) VALUES ($1)",
			wantErr: false,
		},
		{
			name:    "vacuum",
			query:   "VACUUM ANALYZE public.orders",
			wantErr: false,
		},
		{
			name:    "analyze",
			query:   "ANALYZE public.orders",
			wantErr: false,
		},
		{
			name:    "create index",
			query:   "CREATE INDEX IF NOT EXISTS idx_orders ON public.orders (created_at)",
			wantErr: false,
		},
		{
			name:    "empty",
			query:   "   ",
			wantErr: true,
		},
		{
			name:    "multiple statements",
			query:   "SELECT 1; SELECT 2",
			wantErr: true,
		},
		{
			name:    "trailing semicolon",
			query:   "SELECT 1;",
			wantErr: true,
		},
		{
			name:    "drop table",
			query:   "DROP TABLE users",
			wantErr: true,
		},
		{
			name:    "bare create table",
			query:   "CREATE TABLE evil (id int)",
			wantErr: true,
		},
		{
			name:    "delete",
			query:   "DELETE FROM _agentic.system_health",
			wantErr: true,
		},
		{
			name:    "select with embedded drop",
			query:   "SELECT 1 WHERE EXISTS (SELECT 1) OR 1=1 UNION SELECT 2 -- DROP TABLE x",
			wantErr: true,
		},
		{
			name:    "alter inside select",
			query:   "SELECT alter_config()",
			wantErr: false, // alter_config is one word, not the keyword
		},
		{
			name:    "forbidden keyword in literal",
			query:   "SELECT 1 FROM t WHERE kind = 'DELETE'",
			wantErr: false,
		},
		{
			name:    "insert outside agent schema",
			query:   "INSERT INTO public.users (name) VALUES ($1)",
			wantErr: true,
		},
		{
			name:    "update outside hypertables",
			query:   "UPDATE accounts SET balance = 0",
			wantErr: true,
		},
		{
			name:    "update hypertable",
			query:   "UPDATE _agentic.agent_actions SET success = $1",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSQL(tt.query)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %q", tt.query)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.query, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrUnsafeQuery) {
				t.Errorf("error should wrap ErrUnsafeQuery, got %v", err)
			}
		})
	}
}

// TestForbiddenKeywordBoundaries tests that the keyword scan matches
// whole words only.
func TestForbiddenKeywordBoundaries(t *testing.T) {
	// Column and function names that merely contain forbidden words
	// must pass.
	safe := []string{
		"SELECT droplet_count FROM stats",
		"SELECT undeleted FROM flags",
		"SELECT granted_at FROM perms",
	}
	for _, query := range safe {
		if err := ValidateSQL(query); err != nil {
			t.Errorf("ValidateSQL(%q) = %v, want nil", query, err)
		}
	}

	unsafe := []string{
		"SELECT 1 FROM t WHERE x = 1 AND 2 = 2 GRANT ALL",
		"SELECT truncate(x) TRUNCATE TABLE t",
	}
	for _, query := range unsafe {
		if err := ValidateSQL(query); !errors.Is(err, ErrUnsafeQuery) {
			t.Errorf("ValidateSQL(%q) = %v, want ErrUnsafeQuery", query, err)
		}
	}
}

// TestStripQuotedLiterals tests literal removal including the doubled
// quote escape.
func TestStripQuotedLiterals(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no literals",
			input: "SELECT a FROM b",
			want:  "SELECT a FROM b",
		},
		{
			name:  "simple literal",
			input: "WHERE kind = 'DELETE'",
			want:  "WHERE kind = ''",
		},
		{
			name:  "escaped quote inside literal",
			input: "WHERE name = 'O''Brien' AND 1=1",
			want:  "WHERE name = '' AND 1=1",
		},
		{
			name:  "two literals",
			input: "WHERE a = 'x' OR b = 'y'",
			want:  "WHERE a = '' OR b = ''",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripQuotedLiterals(tt.input); got != tt.want {
				t.Errorf("stripQuotedLiterals(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestWriteTarget tests table extraction from write statements.
func TestWriteTarget(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		command string
		want    string
	}{
		{
			name:    "schema qualified insert",
			query:   "INSERT INTO _agentic.query_performance (a) VALUES ($1)",
			command: "INSERT",
			want:    "query_performance",
		},
		{
			name:    "bare insert",
			query:   "INSERT INTO events VALUES ($1)",
			command: "INSERT",
			want:    "events",
		},
		{
			name:    "insert with immediate paren",
			query:   "INSERT INTO _agentic.system_health(a) VALUES ($1)",
			command: "INSERT",
			want:    "system_health",
		},
		{
			name:    "update",
			query:   "UPDATE _agentic.agent_actions SET a = $1",
			command: "UPDATE",
			want:    "agent_actions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeTarget(tt.query, tt.command); got != tt.want {
				t.Errorf("writeTarget(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

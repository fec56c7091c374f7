// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package store

import (
	"context"
	"errors"
	"testing"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), true},
		{"reset", errors.New("read: connection reset by peer"), true},
		{"bad conn", errors.New("driver: bad connection"), true},
		{"closed store", ErrClosed, true},
		{"wrapped closed", errors.Join(errors.New("exec"), ErrClosed), true},
		{"deadline", context.DeadlineExceeded, true},
		{"constraint", errors.New(`pq: duplicate key value violates unique constraint "query_performance_fp_idx"`), false},
		{"syntax", errors.New("pq: syntax error at or near SELEC"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.want {
				t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unique", errors.New(`pq: duplicate key value violates unique constraint "x"`), true},
		{"not null", errors.New("pq: null value in column violates not-null constraint"), true},
		{"duckdb", errors.New("Constraint Error: Duplicate key violates unique constraint"), true},
		{"connection", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConstraintError(tt.err); got != tt.want {
				t.Errorf("IsConstraintError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import (
	"fmt"
	"strings"
)

// Intent is a catalog entry binding a stable name to a statement
// builder. The catalog covers diagnostics and maintenance; inserts are
// constructed directly by the pipeline and are deliberately absent.
type Intent struct {
	Name   string
	Kind   Kind
	Params []string

	build func(params map[string]any) (Statement, error)
}

// Build constructs the statement from loosely-typed parameters, as
// decoded from configuration or an API request body.
func (in Intent) Build(params map[string]any) (Statement, error) {
	return in.build(params)
}

var catalog = []Intent{
	{
		Name:   "slow_queries",
		Kind:   KindDiagnostic,
		Params: []string{"min_exec_ms", "limit"},
		build: func(p map[string]any) (Statement, error) {
			minExec, err := paramFloat(p, "min_exec_ms", 100)
			if err != nil {
				return nil, err
			}
			limit, err := paramInt(p, "limit", 20)
			if err != nil {
				return nil, err
			}
			return SlowQueries{MinExecMs: minExec, Limit: limit}, nil
		},
	},
	{
		Name:   "table_stats",
		Kind:   KindDiagnostic,
		Params: []string{"schema"},
		build: func(p map[string]any) (Statement, error) {
			return TableStats{Schema: paramStringDefault(p, "schema", "public")}, nil
		},
	},
	{
		Name:   "index_usage",
		Kind:   KindDiagnostic,
		Params: []string{"schema"},
		build: func(p map[string]any) (Statement, error) {
			return IndexUsage{Schema: paramStringDefault(p, "schema", "public")}, nil
		},
	},
	{
		Name:   "system_health",
		Kind:   KindDiagnostic,
		Params: nil,
		build: func(map[string]any) (Statement, error) {
			return SystemHealthProbe{}, nil
		},
	},
	{
		Name:   "table_sizes",
		Kind:   KindDiagnostic,
		Params: []string{"schema"},
		build: func(p map[string]any) (Statement, error) {
			return TableSizes{Schema: paramStringDefault(p, "schema", "public")}, nil
		},
	},
	{
		Name:   "check_index_exists",
		Kind:   KindDiagnostic,
		Params: []string{"schema", "table", "index"},
		build: func(p map[string]any) (Statement, error) {
			table, err := paramString(p, "table")
			if err != nil {
				return nil, err
			}
			index, err := paramString(p, "index")
			if err != nil {
				return nil, err
			}
			return CheckIndexExists{
				Schema: paramStringDefault(p, "schema", "public"),
				Table:  table,
				Index:  index,
			}, nil
		},
	},
	{
		Name:   "get_table_columns",
		Kind:   KindDiagnostic,
		Params: []string{"schema", "table"},
		build: func(p map[string]any) (Statement, error) {
			table, err := paramString(p, "table")
			if err != nil {
				return nil, err
			}
			return TableColumns{
				Schema: paramStringDefault(p, "schema", "public"),
				Table:  table,
			}, nil
		},
	},
	{
		Name:   "get_foreign_keys",
		Kind:   KindDiagnostic,
		Params: []string{"schema", "table"},
		build: func(p map[string]any) (Statement, error) {
			table, err := paramString(p, "table")
			if err != nil {
				return nil, err
			}
			return ForeignKeys{
				Schema: paramStringDefault(p, "schema", "public"),
				Table:  table,
			}, nil
		},
	},
	{
		Name:   "create_index",
		Kind:   KindMaintenance,
		Params: []string{"schema", "table", "index", "columns", "method", "concurrent"},
		build: func(p map[string]any) (Statement, error) {
			table, err := paramString(p, "table")
			if err != nil {
				return nil, err
			}
			index, err := paramString(p, "index")
			if err != nil {
				return nil, err
			}
			columns, err := paramStrings(p, "columns")
			if err != nil {
				return nil, err
			}
			concurrent, err := paramBool(p, "concurrent", true)
			if err != nil {
				return nil, err
			}
			return CreateIndex{
				Schema:     paramStringDefault(p, "schema", "public"),
				Table:      table,
				Index:      index,
				Columns:    columns,
				Method:     paramStringDefault(p, "method", ""),
				Concurrent: concurrent,
			}, nil
		},
	},
	{
		Name:   "vacuum_table",
		Kind:   KindMaintenance,
		Params: []string{"schema", "table"},
		build: func(p map[string]any) (Statement, error) {
			table, err := paramString(p, "table")
			if err != nil {
				return nil, err
			}
			return VacuumTable{
				Schema: paramStringDefault(p, "schema", "public"),
				Table:  table,
			}, nil
		},
	},
	{
		Name:   "analyze_table",
		Kind:   KindMaintenance,
		Params: []string{"schema", "table"},
		build: func(p map[string]any) (Statement, error) {
			table, err := paramString(p, "table")
			if err != nil {
				return nil, err
			}
			return AnalyzeTable{
				Schema: paramStringDefault(p, "schema", "public"),
				Table:  table,
			}, nil
		},
	},
}

// Intents returns the catalog in declaration order.
func Intents() []Intent {
	out := make([]Intent, len(catalog))
	copy(out, catalog)
	return out
}

// IntentByName resolves a catalog name. Unknown names return
// ErrUnknownTemplate.
func IntentByName(name string) (Intent, error) {
	for _, in := range catalog {
		if in.Name == name {
			return in, nil
		}
	}
	return Intent{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
}

func paramString(p map[string]any, key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func paramStringDefault(p map[string]any, key, def string) string {
	if s, ok := p[key].(string); ok && s != "" {
		return s
	}
	return def
}

func paramFloat(p map[string]any, key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("parameter %q must be a number", key)
	}
}

func paramInt(p map[string]any, key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("parameter %q must be an integer", key)
	}
}

func paramBool(p map[string]any, key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %q must be a boolean", key)
	}
	return b, nil
}

// paramStrings accepts either a JSON array of strings or a single
// comma-separated string.
func paramStrings(p map[string]any, key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("missing parameter %q", key)
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, fmt.Errorf("parameter %q must not be empty", key)
		}
		parts := strings.Split(t, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %q must contain only strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter %q must be a string list", key)
	}
}

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import (
	"fmt"
	"regexp"
	"strings"
)

// allowedCommands is the closed set of statement-leading commands.
// "CREATE INDEX" is matched as a two-word command; bare CREATE is not
// allowed.
var allowedCommands = map[string]struct{}{
	"SELECT":       {},
	"INSERT":       {},
	"UPDATE":       {},
	"CREATE INDEX": {},
	"VACUUM":       {},
	"ANALYZE":      {},
}

var (
	forbiddenPattern   = regexp.MustCompile(`\b(DROP|TRUNCATE|DELETE|GRANT|REVOKE|SHUTDOWN|ALTER)\b`)
	insertTablePattern = regexp.MustCompile(`(?i)INSERT\s+INTO\s+([^\s(]+)`)
	updateTablePattern = regexp.MustCompile(`(?i)UPDATE\s+([^\s]+)`)
)

// ValidateSQL runs the lexical safety gate over a rendered statement:
// exactly one statement, an allowed leading command, no forbidden
// keywords outside quoted literals, and INSERT/UPDATE targets limited
// to the agent's hypertables.
func ValidateSQL(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", ErrUnsafeQuery)
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("%w: multiple statements", ErrUnsafeQuery)
	}

	command := leadingCommand(trimmed)
	if _, ok := allowedCommands[command]; !ok {
		return fmt.Errorf("%w: command %q not allowed", ErrUnsafeQuery, command)
	}

	scannable := strings.ToUpper(stripQuotedLiterals(trimmed))
	if match := forbiddenPattern.FindString(scannable); match != "" {
		return fmt.Errorf("%w: forbidden keyword %s", ErrUnsafeQuery, match)
	}

	if command == "INSERT" || command == "UPDATE" {
		if table := writeTarget(trimmed, command); table != "" && !AllowedHypertable(table) {
			return fmt.Errorf("%w: table %q is not a hypertable", ErrUnsafeQuery, table)
		}
	}
	return nil
}

// leadingCommand extracts the first one or two words of the statement,
// uppercased. Two words are only combined for CREATE INDEX.
func leadingCommand(query string) string {
	fields := strings.Fields(strings.ToUpper(query))
	if len(fields) == 0 {
		return ""
	}
	if fields[0] == "CREATE" && len(fields) > 1 {
		return fields[0] + " " + fields[1]
	}
	return fields[0]
}

// stripQuotedLiterals replaces single-quoted string literals with
// empty ones so the forbidden-keyword scan does not trip on values
// such as 'FOREIGN KEY'. Doubled quotes inside a literal are handled
// as the SQL escape.
func stripQuotedLiterals(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '\'' {
			if !inLiteral {
				b.WriteByte(c)
			}
			continue
		}
		if inLiteral && i+1 < len(query) && query[i+1] == '\'' {
			i++ // escaped quote, stay inside
			continue
		}
		inLiteral = !inLiteral
		b.WriteByte('\'')
	}
	return b.String()
}

// writeTarget pulls the table name out of an INSERT or UPDATE
// statement, with any schema qualifier removed.
func writeTarget(query, command string) string {
	var pattern *regexp.Regexp
	switch command {
	case "INSERT":
		pattern = insertTablePattern
	case "UPDATE":
		pattern = updateTablePattern
	default:
		return ""
	}
	match := pattern.FindStringSubmatch(query)
	if match == nil {
		return ""
	}
	table := match[1]
	if idx := strings.IndexByte(table, '.'); idx >= 0 {
		table = table[idx+1:]
	}
	return table
}

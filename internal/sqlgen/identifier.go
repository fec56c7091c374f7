// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import (
	"fmt"
	"regexp"
)

// maxIdentifierLen mirrors the PostgreSQL NAMEDATALEN-1 limit.
const maxIdentifierLen = 63

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// ValidIdentifier checks a table, column, index or schema name against
// the identifier grammar: leading letter or underscore, then letters,
// digits, underscores or dots, at most 63 bytes.
func ValidIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidIdentifier, name, maxIdentifierLen)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// validIdentifiers validates each name in turn, returning the first
// failure.
func validIdentifiers(names ...string) error {
	for _, name := range names {
		if err := ValidIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

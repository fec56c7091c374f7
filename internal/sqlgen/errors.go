// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import "errors"

var (
	// ErrUnsafeQuery is returned when a rendered statement fails the
	// lexical safety gate: disallowed leading command, forbidden
	// keyword, multiple statements, or a write outside the agent
	// schema.
	ErrUnsafeQuery = errors.New("unsafe SQL detected")

	// ErrInvalidIdentifier is returned when a table, column, index or
	// schema name does not match the identifier grammar.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")

	// ErrUnknownTemplate is returned by IntentByName for names outside
	// the catalog.
	ErrUnknownTemplate = errors.New("unknown SQL template")
)

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package sqlgen renders the closed set of SQL statements the agent is
// allowed to execute.
//
// Every runnable statement is a typed intent implementing Statement;
// there is no free-form query path. Rendered SQL passes a lexical
// safety gate (command allowlist, forbidden-keyword scan,
// single-statement rule) and every interpolated identifier is
// validated before it reaches the database. Values always travel as
// bind parameters, never as interpolated text.
package sqlgen

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package sqlgen

import (
	"fmt"
	"time"
)

// FingerprintExists probes a hypertable for a fingerprint newer than
// Cutoff. The deduplication engine issues this on every cache miss.
type FingerprintExists struct {
	Hypertable  string
	TimeColumn  string
	Fingerprint string
	Cutoff      time.Time
}

func (s FingerprintExists) Kind() Kind { return KindSync }

func (s FingerprintExists) Validate() error {
	if !AllowedHypertable(s.Hypertable) {
		return fmt.Errorf("%w: table %q is not a hypertable", ErrUnsafeQuery, s.Hypertable)
	}
	if err := ValidIdentifier(s.TimeColumn); err != nil {
		return err
	}
	if s.Fingerprint == "" {
		return fmt.Errorf("fingerprint probe %s: empty fingerprint", s.Hypertable)
	}
	if s.Cutoff.IsZero() {
		return fmt.Errorf("fingerprint probe %s: zero cutoff", s.Hypertable)
	}
	return nil
}

func (s FingerprintExists) SQL() string {
	return fmt.Sprintf(
		"SELECT EXISTS (SELECT 1 FROM %s.%s WHERE fingerprint = $1 AND %s > $2)",
		Schema, s.Hypertable, s.TimeColumn,
	)
}

func (s FingerprintExists) Args() []any { return []any{s.Fingerprint, s.Cutoff} }

// LastSyncTime reads the newest time-column value one database has
// written into a hypertable, for resuming collection after restarts.
type LastSyncTime struct {
	Hypertable string
	TimeColumn string
	DBID       string
}

func (s LastSyncTime) Kind() Kind { return KindSync }

func (s LastSyncTime) Validate() error {
	if !AllowedHypertable(s.Hypertable) {
		return fmt.Errorf("%w: table %q is not a hypertable", ErrUnsafeQuery, s.Hypertable)
	}
	if err := ValidIdentifier(s.TimeColumn); err != nil {
		return err
	}
	if s.DBID == "" {
		return fmt.Errorf("last sync %s: empty db_id", s.Hypertable)
	}
	return nil
}

func (s LastSyncTime) SQL() string {
	return fmt.Sprintf(
		"SELECT MAX(%s) FROM %s.%s WHERE db_id = $1",
		s.TimeColumn, Schema, s.Hypertable,
	)
}

func (s LastSyncTime) Args() []any { return []any{s.DBID} }

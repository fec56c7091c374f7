// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package spool journals admitted observations whose durable insert
// failed, so a store outage costs latency instead of data. Entries are
// persisted to BadgerDB (build tag "spool") and replayed through the
// pipeline by a background retry loop; binaries built without the tag
// get a stub that refuses to enable spooling.
package spool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/dbvigil/dbvigil/internal/observation"
)

var (
	// ErrSpoolDisabled is returned when spooling is requested from a
	// binary built without the spool tag.
	ErrSpoolDisabled = errors.New("spool support not compiled in (build with -tags spool)")

	// ErrEntryNotFound is returned by Confirm for unknown entry IDs.
	ErrEntryNotFound = errors.New("spool entry not found")

	// ErrSpoolClosed is returned by operations on a closed spool.
	ErrSpoolClosed = errors.New("spool is closed")
)

// Spool is the durable journal contract.
type Spool interface {
	// Append journals one entry durably.
	Append(ctx context.Context, entry Entry) error
	// Confirm removes a successfully replayed entry.
	Confirm(ctx context.Context, id string) error
	// Pending returns unconfirmed entries, oldest first.
	Pending(ctx context.Context) ([]Entry, error)
	// Stats snapshots journal counters.
	Stats() Stats
	// Close releases the journal.
	Close() error
}

// Entry is one journaled observation awaiting a successful insert.
type Entry struct {
	ID            string          `json:"id"`
	Hypertable    string          `json:"hypertable"`
	Fingerprint   string          `json:"fingerprint"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// NewEntry journals an observation under a fresh ID.
func NewEntry(hypertable, fingerprint string, obs observation.Observation) (Entry, error) {
	payload, err := json.Marshal(obs)
	if err != nil {
		return Entry{}, fmt.Errorf("encode spool payload: %w", err)
	}
	return Entry{
		ID:          uuid.NewString(),
		Hypertable:  hypertable,
		Fingerprint: fingerprint,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Observation decodes the journaled observation.
func (e Entry) Observation() (observation.Observation, error) {
	var obs observation.Observation
	if err := json.Unmarshal(e.Payload, &obs); err != nil {
		return nil, fmt.Errorf("decode spool payload: %w", err)
	}
	return obs, nil
}

// Stats holds journal counters for the ops surface.
type Stats struct {
	Pending      int64     `json:"pending"`
	TotalAppends int64     `json:"total_appends"`
	TotalReplays int64     `json:"total_replays"`
	OldestEntry  time.Time `json:"oldest_entry,omitempty"`
}

// Config carries spool tuning.
type Config struct {
	// Path is the BadgerDB directory.
	Path string

	// RetryInterval is how often the retry loop scans for pending
	// entries. Default 30s.
	RetryInterval time.Duration

	// MaxAttempts drops an entry after this many failed replays.
	// Default 10.
	MaxAttempts int

	// EntryTTL drops entries older than this regardless of attempts.
	// Default 24h.
	EntryTTL time.Duration

	// SyncWrites fsyncs every append. Slower, safer. Default true.
	SyncWrites bool
}

// DefaultConfig returns the stock spool tuning.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		RetryInterval: 30 * time.Second,
		MaxAttempts:   10,
		EntryTTL:      24 * time.Hour,
		SyncWrites:    true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("spool: empty path")
	}
	if c.RetryInterval <= 0 {
		return errors.New("spool: non-positive retry interval")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("spool: non-positive max attempts")
	}
	return nil
}

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// AuditDecision is the outcome recorded for one observation.
type AuditDecision string

const (
	// AuditAdmitted means the observation was novel and durably inserted.
	AuditAdmitted AuditDecision = "admitted"
	// AuditDuplicate means the dedup engine rejected the observation.
	AuditDuplicate AuditDecision = "duplicate"
	// AuditLateDuplicate means the store's unique index rejected an
	// observation the cache had admitted.
	AuditLateDuplicate AuditDecision = "late_duplicate"
	// AuditInsertFailed means the durable insert failed.
	AuditInsertFailed AuditDecision = "insert_failed"
	// AuditDropped means the event never reached admission (malformed,
	// unroutable, or no subscribers).
	AuditDropped AuditDecision = "dropped"
)

// AuditEvent is one line of the audit trail. Fingerprint carries only a
// prefix; payload contents are never written.
type AuditEvent struct {
	Time        time.Time     `json:"time"`
	Decision    AuditDecision `json:"decision"`
	Channel     string        `json:"channel,omitempty"`
	EventType   string        `json:"event_type,omitempty"`
	Hypertable  string        `json:"hypertable,omitempty"`
	DBID        string        `json:"db_id,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Detail      string        `json:"detail,omitempty"`
}

// AuditConfig holds audit trail configuration.
type AuditConfig struct {
	// Path is the JSONL file to append to. Empty disables the trail.
	Path string

	// MaxBytes rotates the file once it grows past this size.
	// Default: 32 MiB. A single rotated generation (.1) is kept.
	MaxBytes int64
}

// DefaultAuditConfig returns sensible defaults for the audit trail.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		MaxBytes: 32 * 1024 * 1024,
	}
}

// AuditTrail appends admission decisions as JSON lines.
// A nil *AuditTrail is valid and records nothing.
type AuditTrail struct {
	cfg    AuditConfig
	logger zerolog.Logger

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewAuditTrail opens (or creates) the trail file in append mode.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAuditTrail(cfg AuditConfig, logger zerolog.Logger) (*AuditTrail, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultAuditConfig().MaxBytes
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat audit trail: %w", err)
	}

	return &AuditTrail{
		cfg:    cfg,
		logger: logger,
		file:   f,
		size:   info.Size(),
	}, nil
}

// Record appends one event. Write failures are logged, never propagated;
// the audit trail must not be able to stall ingestion.
func (a *AuditTrail) Record(ev AuditEvent) {
	if a == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	line, err := json.Marshal(ev)
	if err != nil {
		a.logger.Error().Err(err).Msg("audit: marshal failed")
		return
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return
	}
	if a.size+int64(len(line)) > a.cfg.MaxBytes {
		a.rotateLocked()
	}

	n, err := a.file.Write(line)
	a.size += int64(n)
	if err != nil {
		a.logger.Error().Err(err).Msg("audit: write failed")
	}
}

// rotateLocked renames the current file to .1 and reopens. Must hold mu.
func (a *AuditTrail) rotateLocked() {
	a.file.Close()
	if err := os.Rename(a.cfg.Path, a.cfg.Path+".1"); err != nil {
		a.logger.Error().Err(err).Msg("audit: rotate failed")
	}

	f, err := os.OpenFile(a.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		a.logger.Error().Err(err).Msg("audit: reopen failed; trail disabled")
		a.file = nil
		return
	}
	a.file = f
	a.size = 0
}

// Close flushes and closes the trail file.
func (a *AuditTrail) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

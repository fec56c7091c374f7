// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package spool

import (
	"testing"
	"time"

	"github.com/dbvigil/dbvigil/internal/observation"
)

func TestNewEntryRoundTrip(t *testing.T) {
	obs := observation.Observation{
		"event_type": "slow_query",
		"db_id":      "prod-1",
		"query_hash": "abc123",
	}

	entry, err := NewEntry("query_performance", "deadbeef", obs)
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	if entry.ID == "" {
		t.Error("NewEntry() produced empty ID")
	}
	if entry.Hypertable != "query_performance" {
		t.Errorf("Hypertable = %q, want query_performance", entry.Hypertable)
	}
	if entry.Fingerprint != "deadbeef" {
		t.Errorf("Fingerprint = %q, want deadbeef", entry.Fingerprint)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
	if entry.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", entry.Attempts)
	}

	decoded, err := entry.Observation()
	if err != nil {
		t.Fatalf("Observation() error = %v", err)
	}
	if decoded.EventType() != "slow_query" {
		t.Errorf("decoded event_type = %q, want slow_query", decoded.EventType())
	}
	if decoded.DBID() != "prod-1" {
		t.Errorf("decoded db_id = %q, want prod-1", decoded.DBID())
	}
}

func TestEntryObservationMalformed(t *testing.T) {
	entry := Entry{Payload: []byte("{not json")}
	if _, err := entry.Observation(); err == nil {
		t.Error("Observation() with malformed payload should fail")
	}
}

func TestNewEntryDistinctIDs(t *testing.T) {
	obs := observation.Observation{"event_type": "system_health"}
	a, err := NewEntry("system_health", "fp1", obs)
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	b, err := NewEntry("system_health", "fp1", obs)
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("NewEntry() returned duplicate ID %q", a.ID)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/var/lib/dbvigil/spool")
	if cfg.Path != "/var/lib/dbvigil/spool" {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.RetryInterval != 30*time.Second {
		t.Errorf("RetryInterval = %v, want 30s", cfg.RetryInterval)
	}
	if cfg.MaxAttempts != 10 {
		t.Errorf("MaxAttempts = %d, want 10", cfg.MaxAttempts)
	}
	if cfg.EntryTTL != 24*time.Hour {
		t.Errorf("EntryTTL = %v, want 24h", cfg.EntryTTL)
	}
	if !cfg.SyncWrites {
		t.Error("SyncWrites should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty path", func(c *Config) { c.Path = "" }, true},
		{"zero retry interval", func(c *Config) { c.RetryInterval = 0 }, true},
		{"zero max attempts", func(c *Config) { c.MaxAttempts = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(t.TempDir())
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

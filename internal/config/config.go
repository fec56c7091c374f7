// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package config loads and validates agent configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables, in ascending priority.
package config

import (
	"fmt"
	"time"
)

// Store backends.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendDuckDB   = "duckdb"
)

// Bus backends.
const (
	BusBackendPostgres = "postgres"
	BusBackendNATS     = "nats"
	BusBackendMemory   = "memory"
)

// Config is the root agent configuration.
type Config struct {
	Logging LoggingConfig `koanf:"logging"`
	Store   StoreConfig   `koanf:"store"`
	Bus     BusConfig     `koanf:"bus"`
	Dedup   DedupConfig   `koanf:"dedup"`
	Router  RouterConfig  `koanf:"router"`
	Spool   SpoolConfig   `koanf:"spool"`
	API     APIConfig     `koanf:"api"`
	Audit   AuditConfig   `koanf:"audit"`
}

// LoggingConfig controls the root zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// StoreConfig selects and tunes the analytics store.
type StoreConfig struct {
	// Backend is "postgres" (networked, TimescaleDB-aware) or
	// "duckdb" (embedded single-file).
	Backend string `koanf:"backend"`

	// DSN is the PostgreSQL connection string. Postgres backend only.
	DSN string `koanf:"dsn"`

	// Timescale promotes hypertables at bootstrap. Postgres backend only.
	Timescale bool `koanf:"timescale"`

	// Path is the DuckDB database file. DuckDB backend only.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory use, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads caps DuckDB worker threads. Zero uses NumCPU.
	Threads int `koanf:"threads"`

	// MaxOpenConns caps the Postgres pool. Zero derives from NumCPU.
	MaxOpenConns int `koanf:"max_open_conns"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the store circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
}

// BusConfig selects and tunes the notification fabric.
type BusConfig struct {
	// Backend is "postgres" (LISTEN/NOTIFY), "nats" (requires the
	// nats build tag), or "memory" (single-process).
	Backend string `koanf:"backend"`

	// DSN overrides store.dsn for the listen connections. Empty
	// reuses the store DSN. Postgres backend only.
	DSN string `koanf:"dsn"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig tunes the NATS bus backend.
type NATSConfig struct {
	URL          string `koanf:"url"`
	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port"`
}

// DedupConfig tunes the deduplication engine.
type DedupConfig struct {
	// BucketMinutes is the timestamp equivalence window, 1 to 60.
	BucketMinutes int `koanf:"bucket_minutes"`

	// CacheTTL bounds how long a cached verdict is trusted.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// CacheCapacity bounds the verdict cache size.
	CacheCapacity int `koanf:"cache_capacity"`

	// Lookback bounds how far back existence probes search.
	Lookback time.Duration `koanf:"lookback"`
}

// RouterConfig tunes the event router.
type RouterConfig struct {
	// GracePeriod bounds the in-flight drain on shutdown.
	GracePeriod time.Duration `koanf:"grace_period"`

	// DispatchPerSecond rate-limits per-channel dispatch. Zero is
	// unlimited.
	DispatchPerSecond float64 `koanf:"dispatch_per_second"`

	// DispatchBurst is the limiter burst. Zero derives from the rate.
	DispatchBurst int `koanf:"dispatch_burst"`
}

// SpoolConfig tunes the durable retry journal.
type SpoolConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Path          string        `koanf:"path"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	MaxAttempts   int           `koanf:"max_attempts"`
	EntryTTL      time.Duration `koanf:"entry_ttl"`
	SyncWrites    bool          `koanf:"sync_writes"`
}

// APIConfig tunes the ops HTTP surface.
type APIConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// Addr renders the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuditConfig tunes the admission audit trail.
type AuditConfig struct {
	// Path is the JSONL file to append decisions to. Empty disables
	// the trail.
	Path string `koanf:"path"`

	// MaxBytes rotates the file once it grows past this size.
	MaxBytes int64 `koanf:"max_bytes"`
}

// Default returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Backend:   StoreBackendPostgres,
			DSN:       "",
			Timescale: true,
			Path:      "/data/dbvigil.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
			},
		},
		Bus: BusConfig{
			Backend: BusBackendPostgres,
			NATS: NATSConfig{
				URL:          "nats://127.0.0.1:4222",
				Embedded:     false,
				EmbeddedHost: "127.0.0.1",
				EmbeddedPort: 4222,
			},
		},
		Dedup: DedupConfig{
			BucketMinutes: 5,
			CacheTTL:      time.Hour,
			CacheCapacity: 100_000,
			Lookback:      time.Hour,
		},
		Router: RouterConfig{
			GracePeriod:       5 * time.Second,
			DispatchPerSecond: 0, // Unlimited
		},
		Spool: SpoolConfig{
			Enabled:       false, // Requires the spool build tag
			Path:          "/data/dbvigil-spool",
			RetryInterval: 30 * time.Second,
			MaxAttempts:   10,
			EntryTTL:      24 * time.Hour,
			SyncWrites:    true,
		},
		API: APIConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            9422,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Audit: AuditConfig{
			Path:     "",
			MaxBytes: 32 * 1024 * 1024,
		},
	}
}

// Validate checks cross-field consistency. Per-component constructors
// re-check their own tunables; this catches what they cannot see.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store: postgres backend requires store.dsn")
		}
	case StoreBackendDuckDB:
		if c.Store.Path == "" {
			return fmt.Errorf("store: duckdb backend requires store.path")
		}
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}

	switch c.Bus.Backend {
	case BusBackendPostgres:
		if c.Store.Backend != StoreBackendPostgres && c.Bus.DSN == "" {
			return fmt.Errorf("bus: postgres backend requires bus.dsn when the store is not postgres")
		}
	case BusBackendNATS:
		if c.Bus.NATS.URL == "" && !c.Bus.NATS.Embedded {
			return fmt.Errorf("bus: nats backend requires bus.nats.url or an embedded server")
		}
	case BusBackendMemory:
		// Single-process only; nothing to check.
	default:
		return fmt.Errorf("bus: unknown backend %q", c.Bus.Backend)
	}

	if c.Dedup.BucketMinutes < 1 || c.Dedup.BucketMinutes > 60 {
		return fmt.Errorf("dedup: bucket_minutes %d out of range 1..60", c.Dedup.BucketMinutes)
	}
	if c.Dedup.CacheCapacity <= 0 {
		return fmt.Errorf("dedup: non-positive cache_capacity")
	}

	if c.Spool.Enabled {
		if c.Spool.Path == "" {
			return fmt.Errorf("spool: enabled without spool.path")
		}
		if c.Spool.MaxAttempts <= 0 {
			return fmt.Errorf("spool: non-positive max_attempts")
		}
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			return fmt.Errorf("api: port %d out of range", c.API.Port)
		}
	}

	return nil
}

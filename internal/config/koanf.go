// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"dbvigil.yaml",
	"dbvigil.yml",
	"/etc/dbvigil/dbvigil.yaml",
	"/etc/dbvigil/dbvigil.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "DBVIGIL_CONFIG"

// Load builds the agent configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names (lowercased) to koanf
// config paths. Unmapped variables are ignored so random environment
// noise cannot pollute the configuration.
var envMappings = map[string]string{
	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Store
	"store_backend":        "store.backend",
	"postgres_dsn":         "store.dsn",
	"timescale_enabled":    "store.timescale",
	"duckdb_path":          "store.path",
	"duckdb_max_memory":    "store.max_memory",
	"duckdb_threads":       "store.threads",
	"store_max_open_conns": "store.max_open_conns",
	"breaker_threshold":    "store.breaker.failure_threshold",
	"breaker_open_timeout": "store.breaker.open_timeout",

	// Bus
	"bus_backend":        "bus.backend",
	"bus_dsn":            "bus.dsn",
	"nats_url":           "bus.nats.url",
	"nats_embedded":      "bus.nats.embedded",
	"nats_embedded_host": "bus.nats.embedded_host",
	"nats_embedded_port": "bus.nats.embedded_port",

	// Dedup
	"dedup_bucket_minutes": "dedup.bucket_minutes",
	"dedup_cache_ttl":      "dedup.cache_ttl",
	"dedup_cache_capacity": "dedup.cache_capacity",
	"dedup_lookback":       "dedup.lookback",

	// Router
	"router_grace_period":        "router.grace_period",
	"router_dispatch_per_second": "router.dispatch_per_second",
	"router_dispatch_burst":      "router.dispatch_burst",

	// Spool
	"spool_enabled":        "spool.enabled",
	"spool_path":           "spool.path",
	"spool_retry_interval": "spool.retry_interval",
	"spool_max_attempts":   "spool.max_attempts",
	"spool_entry_ttl":      "spool.entry_ttl",
	"spool_sync_writes":    "spool.sync_writes",

	// API
	"api_enabled":           "api.enabled",
	"api_host":              "api.host",
	"api_port":              "api.port",
	"api_timeout":           "api.timeout",
	"api_rate_limit_reqs":   "api.rate_limit_reqs",
	"api_rate_limit_window": "api.rate_limit_window",

	// Audit
	"audit_path":      "audit.path",
	"audit_max_bytes": "audit.max_bytes",
}

// envTransformFunc maps environment variable names to koanf config
// paths, e.g. POSTGRES_DSN -> store.dsn and DEDUP_BUCKET_MINUTES ->
// dedup.bucket_minutes.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Unmapped keys are skipped.
	return ""
}

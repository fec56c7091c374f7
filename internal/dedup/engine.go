// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/metrics"
	"github.com/dbvigil/dbvigil/internal/observation"
	"github.com/dbvigil/dbvigil/internal/sqlgen"
)

// Oracle is the authoritative store consulted on cache misses. The
// analytics store satisfies this; tests substitute fakes.
type Oracle interface {
	// QueryValue runs a single-value read and returns the first column
	// of the first row.
	QueryValue(ctx context.Context, query string, args ...any) (any, error)
}

// Defaults applied by NewEngine when the corresponding Config field is
// zero.
const (
	DefaultCacheTTL      = time.Hour
	DefaultCacheCapacity = 100_000
	DefaultLookback      = time.Hour
)

// Config carries the tunables of the deduplication engine.
type Config struct {
	// CacheTTL bounds how long a cached verdict is trusted.
	CacheTTL time.Duration
	// CacheCapacity bounds the verdict cache size; the least recently
	// used entries are evicted beyond it.
	CacheCapacity int
	// BucketMinutes is the timestamp equivalence window, 1 to 60.
	BucketMinutes int
	// Lookback bounds how far back existence probes search when the
	// caller does not say.
	Lookback time.Duration
}

// DefaultConfig returns the stock engine tuning.
func DefaultConfig() Config {
	return Config{
		CacheTTL:      DefaultCacheTTL,
		CacheCapacity: DefaultCacheCapacity,
		BucketMinutes: DefaultBucketMinutes,
		Lookback:      DefaultLookback,
	}
}

// Engine answers "have we stored this observation already?". Verdicts
// come from the in-memory cache first and the Oracle on a miss; Oracle
// verdicts are cached both ways.
type Engine struct {
	oracle        Oracle
	cache         *Cache
	fingerprinter *Fingerprinter
	lookback      time.Duration
	logger        zerolog.Logger
}

// NewEngine builds an engine over the given oracle. Zero Config fields
// take defaults; an out-of-range bucket width is an error.
func NewEngine(oracle Oracle, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = DefaultCacheCapacity
	}
	if cfg.BucketMinutes == 0 {
		cfg.BucketMinutes = DefaultBucketMinutes
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}

	fingerprinter, err := NewFingerprinter(cfg.BucketMinutes, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		oracle:        oracle,
		cache:         NewCache(cfg.CacheCapacity, cfg.CacheTTL),
		fingerprinter: fingerprinter,
		lookback:      cfg.Lookback,
		logger:        logger,
	}, nil
}

// GenerateFingerprint derives the content fingerprint of an
// observation. Pass bucketTime=true for the deduplication key;
// bucketTime=false keeps the raw timestamp text.
func (e *Engine) GenerateFingerprint(obs observation.Observation, bucketTime bool) string {
	return e.fingerprinter.Generate(obs, bucketTime)
}

// AlreadyExists reports whether a fingerprint has been stored in the
// hypertable within the lookback window. A lookback of zero uses the
// configured default. Cache answers are trusted until their TTL; a
// miss asks the Oracle and caches the result.
func (e *Engine) AlreadyExists(ctx context.Context, fingerprint, hypertable string, lookback time.Duration) bool {
	if lookback <= 0 {
		lookback = e.lookback
	}

	if exists, ok := e.cache.Get(hypertable, fingerprint); ok {
		metrics.RecordCacheHit()
		e.logger.Debug().
			Str("hypertable", hypertable).
			Str("fingerprint", Prefix(fingerprint)).
			Bool("exists", exists).
			Msg("fingerprint cache hit")
		return exists
	}
	metrics.RecordCacheMiss()

	query, args, err := sqlgen.Render(sqlgen.FingerprintExists{
		Hypertable:  hypertable,
		TimeColumn:  TimeColumn(hypertable),
		Fingerprint: fingerprint,
		Cutoff:      time.Now().UTC().Add(-lookback),
	})
	if err != nil {
		e.logger.Error().Err(err).Str("hypertable", hypertable).Msg("existence probe rejected")
		return false
	}

	start := time.Now()
	value, err := e.oracle.QueryValue(ctx, query, args...)
	metrics.RecordOracleCheck(hypertable, time.Since(start), err)
	if err != nil {
		// An unreachable store counts as absent; the unique index
		// still stops true replays at insert time.
		e.logger.Error().Err(err).
			Str("hypertable", hypertable).
			Str("fingerprint", Prefix(fingerprint)).
			Msg("existence check failed, treating fingerprint as absent")
		return false
	}

	exists := asBool(value)
	e.cache.Put(hypertable, fingerprint, exists)
	metrics.SetCacheEntries(e.cache.Len())
	return exists
}

// ShouldInsert fingerprints the observation and reports whether it
// should be written, returning the fingerprint either way so the
// caller can mark it after a successful insert.
func (e *Engine) ShouldInsert(ctx context.Context, obs observation.Observation, hypertable string, lookback time.Duration) (bool, string) {
	fingerprint := e.GenerateFingerprint(obs, true)
	exists := e.AlreadyExists(ctx, fingerprint, hypertable, lookback)
	metrics.RecordAdmission(hypertable, !exists)
	return !exists, fingerprint
}

// MarkInserted records a successful insert so later lookups short-
// circuit in the cache. Call it after the store confirms the write.
func (e *Engine) MarkInserted(fingerprint, hypertable string) {
	e.cache.Put(hypertable, fingerprint, true)
	metrics.SetCacheEntries(e.cache.Len())
	e.logger.Debug().
		Str("hypertable", hypertable).
		Str("fingerprint", Prefix(fingerprint)).
		Msg("fingerprint marked inserted")
}

// LastSyncTime returns the newest time-column value a database has
// written into a hypertable. The second return is false when the
// hypertable holds nothing for that database.
func (e *Engine) LastSyncTime(ctx context.Context, dbID, hypertable string) (time.Time, bool, error) {
	query, args, err := sqlgen.Render(sqlgen.LastSyncTime{
		Hypertable: hypertable,
		TimeColumn: TimeColumn(hypertable),
		DBID:       dbID,
	})
	if err != nil {
		return time.Time{}, false, err
	}

	value, err := e.oracle.QueryValue(ctx, query, args...)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last sync time for %s: %w", hypertable, err)
	}

	ts, ok := asTime(value)
	if !ok {
		return time.Time{}, false, nil
	}

	e.logger.Info().
		Str("hypertable", hypertable).
		Str("db_id", dbID).
		Time("last_sync", ts).
		Msg("resolved last sync time")
	return ts, true, nil
}

// ClearCache drops every cached verdict.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	metrics.SetCacheEntries(0)
	e.logger.Info().Msg("fingerprint cache cleared")
}

// CleanupCache removes expired verdicts and returns how many were
// dropped.
func (e *Engine) CleanupCache() int {
	removed := e.cache.CleanupExpired()
	if removed > 0 {
		metrics.RecordCacheEvictions(removed, e.cache.Len())
		e.logger.Info().Int("removed", removed).Msg("expired fingerprint cache entries removed")
	}
	return removed
}

// SetBucketInterval changes the timestamp bucket width at runtime.
func (e *Engine) SetBucketInterval(minutes int) error {
	return e.fingerprinter.SetBucketInterval(minutes)
}

// BucketInterval returns the current bucket width in minutes.
func (e *Engine) BucketInterval() int {
	return e.fingerprinter.BucketInterval()
}

// CacheStats snapshots the verdict cache counters.
func (e *Engine) CacheStats() CacheStats {
	return e.cache.Stats()
}

// timeColumns maps each hypertable to its primary time column.
var timeColumns = map[string]string{
	"schema_metadata":        "captured_at",
	"query_performance":      "executed_at",
	"index_analytics":        "measured_at",
	"table_statistics":       "recorded_at",
	"semantic_relationships": "discovered_at",
	"system_health":          "timestamp",
	"data_quality_metrics":   "measured_at",
	"agent_actions":          "executed_at",
}

// TimeColumn returns the primary time column of a hypertable,
// defaulting to "timestamp" for unknown tables.
func TimeColumn(hypertable string) string {
	if column, ok := timeColumns[hypertable]; ok {
		return column
	}
	return "timestamp"
}

// asBool normalizes driver-specific EXISTS results.
func asBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v == "t" || v == "true"
	default:
		return false
	}
}

// asTime normalizes driver-specific MAX(time) results. NULL comes back
// as nil.
func asTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string:
		return observation.ParseTimestamp(v)
	default:
		return time.Time{}, false
	}
}

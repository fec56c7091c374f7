// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/metrics"
	"github.com/dbvigil/dbvigil/internal/observation"
)

// DefaultBucketMinutes is the default width of the timestamp
// equivalence window.
const DefaultBucketMinutes = 5

// ErrInvalidBucketInterval rejects bucket widths outside [1, 60]
// minutes.
var ErrInvalidBucketInterval = errors.New("bucket interval must be between 1 and 60 minutes")

// bucketLayout renders bucketed timestamps without a zone suffix so
// the same instant always joins into the same key.
const bucketLayout = "2006-01-02T15:04:05"

// disambiguators are appended to the key when present, in this order.
var disambiguators = []string{
	observation.FieldQueryHash,
	observation.FieldIndexName,
	observation.FieldColumnName,
}

// Fingerprinter derives content fingerprints from observations. The
// bucket interval may be changed at runtime; everything else is
// stateless.
type Fingerprinter struct {
	mu      sync.RWMutex
	minutes int
	logger  zerolog.Logger
}

// NewFingerprinter creates a fingerprinter with the given bucket
// width in minutes.
func NewFingerprinter(minutes int, logger zerolog.Logger) (*Fingerprinter, error) {
	if minutes < 1 || minutes > 60 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBucketInterval, minutes)
	}
	return &Fingerprinter{minutes: minutes, logger: logger}, nil
}

// SetBucketInterval changes the bucket width. Widths outside [1, 60]
// minutes are rejected and the current width is kept.
func (f *Fingerprinter) SetBucketInterval(minutes int) error {
	if minutes < 1 || minutes > 60 {
		return fmt.Errorf("%w: got %d", ErrInvalidBucketInterval, minutes)
	}

	f.mu.Lock()
	f.minutes = minutes
	f.mu.Unlock()

	f.logger.Info().Int("minutes", minutes).Msg("time bucket interval updated")
	return nil
}

// BucketInterval returns the current bucket width in minutes.
func (f *Fingerprinter) BucketInterval() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.minutes
}

// Generate derives the fingerprint of one observation: db_id, table
// name and event type always contribute (empty when missing), the
// timestamp contributes when any timestamp field is present, and
// query_hash, index_name and column_name contribute when set. With
// bucketTime the timestamp is floored to the bucket boundary so
// repeated collection of the same fact inside one window collides.
func (f *Fingerprinter) Generate(obs observation.Observation, bucketTime bool) string {
	parts := make([]string, 0, 7)

	dbID, _ := obs.Field(observation.FieldDBID)
	table, _ := obs.Field(observation.FieldTableName)
	eventType, _ := obs.Field(observation.FieldEventType)
	parts = append(parts, dbID, table, eventType)

	if raw, ok := obs.TimestampValue(); ok {
		if bucketTime {
			parts = append(parts, f.bucketTimestamp(raw))
		} else {
			parts = append(parts, raw)
		}
	}

	for _, field := range disambiguators {
		if value, ok := obs.Field(field); ok {
			parts = append(parts, value)
		}
	}

	key := strings.Join(parts, ":")
	sum := sha256.Sum256([]byte(key))
	fingerprint := hex.EncodeToString(sum[:])

	f.logger.Debug().
		Str("fingerprint", Prefix(fingerprint)).
		Str("key", truncateKey(key)).
		Msg("generated fingerprint")

	return fingerprint
}

// bucketTimestamp floors a timestamp to the bucket boundary within its
// hour and renders it in the canonical layout. Unparsable values fall
// back to the current time, which keeps the observation flowing but
// makes its fingerprint time-dependent.
func (f *Fingerprinter) bucketTimestamp(raw string) string {
	ts, ok := observation.ParseTimestamp(raw)
	if !ok {
		metrics.RecordTimestampFallback()
		f.logger.Warn().
			Str("value", raw).
			Msg("unparsable timestamp, bucketing on current time")
		ts = time.Now().UTC()
	}

	minutes := f.BucketInterval()
	bucketMinute := (ts.Minute() / minutes) * minutes
	bucketed := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), bucketMinute, 0, 0, time.UTC)

	return bucketed.Format(bucketLayout)
}

// Prefix shortens a fingerprint to its first 16 characters for log
// lines.
func Prefix(fingerprint string) string {
	if len(fingerprint) <= 16 {
		return fingerprint
	}
	return fingerprint[:16]
}

func truncateKey(key string) string {
	if len(key) <= 100 {
		return key
	}
	return key[:100]
}

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/observation"
)

func newTestFingerprinter(t *testing.T, minutes int) *Fingerprinter {
	t.Helper()
	f, err := NewFingerprinter(minutes, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFingerprinter failed: %v", err)
	}
	return f
}

// keyDigest computes the fingerprint a given join key must produce.
func keyDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// TestGenerateBucketsTimestamp tests the canonical key construction:
// identity fields, bucketed timestamp, then disambiguators.
func TestGenerateBucketsTimestamp(t *testing.T) {
	f := newTestFingerprinter(t, 5)

	obs := observation.Observation{
		"db_id":      "db1",
		"table_name": "orders",
		"event_type": "slow_query",
		"timestamp":  "2024-01-01T10:03:30Z",
		"query_hash": "abc123",
	}

	got := f.Generate(obs, true)
	want := keyDigest("db1:orders:slow_query:2024-01-01T10:00:00:abc123")
	if got != want {
		t.Errorf("fingerprint: expected %s, got %s", want, got)
	}
}

// TestGenerateSameBucketCollides tests that observations inside one
// bucket share a fingerprint and the next bucket breaks it.
func TestGenerateSameBucketCollides(t *testing.T) {
	f := newTestFingerprinter(t, 5)

	base := observation.Observation{
		"db_id":      "db1",
		"table_name": "orders",
		"event_type": "slow_query",
		"query_hash": "abc123",
	}

	at := func(ts string) string {
		obs := base.Clone()
		obs["timestamp"] = ts
		return f.Generate(obs, true)
	}

	first := at("2024-01-01T10:00:00Z")
	sameBucket := []string{"2024-01-01T10:03:30Z", "2024-01-01T10:04:59Z"}
	for _, ts := range sameBucket {
		if got := at(ts); got != first {
			t.Errorf("timestamp %s should share the 10:00 bucket fingerprint", ts)
		}
	}

	if got := at("2024-01-01T10:05:00Z"); got == first {
		t.Error("10:05:00 should open a new bucket")
	}
}

// TestGenerateBucketsAnchorToHour tests that buckets restart at every
// hour, leaving a short final bucket for widths that do not divide 60.
func TestGenerateBucketsAnchorToHour(t *testing.T) {
	f := newTestFingerprinter(t, 7)

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "2024-01-01T10:00:00Z", want: "2024-01-01T10:00:00"},
		{raw: "2024-01-01T10:06:59Z", want: "2024-01-01T10:00:00"},
		{raw: "2024-01-01T10:07:00Z", want: "2024-01-01T10:07:00"},
		{raw: "2024-01-01T10:58:30Z", want: "2024-01-01T10:56:00"},
		{raw: "2024-01-01T10:59:59Z", want: "2024-01-01T10:56:00"},
		{raw: "2024-01-01T11:00:30Z", want: "2024-01-01T11:00:00"},
	}

	for _, tt := range tests {
		if got := f.bucketTimestamp(tt.raw); got != tt.want {
			t.Errorf("bucketTimestamp(%s): expected %s, got %s", tt.raw, tt.want, got)
		}
	}
}

// TestGenerateBucketWidths tests the 1 and 60 minute extremes.
func TestGenerateBucketWidths(t *testing.T) {
	one := newTestFingerprinter(t, 1)
	if got := one.bucketTimestamp("2024-01-01T10:03:30Z"); got != "2024-01-01T10:03:00" {
		t.Errorf("1-minute bucket: got %s", got)
	}

	hour := newTestFingerprinter(t, 60)
	if got := hour.bucketTimestamp("2024-01-01T10:59:59Z"); got != "2024-01-01T10:00:00" {
		t.Errorf("60-minute bucket: got %s", got)
	}
}

// TestGenerateNormalizesZone tests that offset timestamps land in the
// same bucket as their UTC equivalent.
func TestGenerateNormalizesZone(t *testing.T) {
	f := newTestFingerprinter(t, 5)

	if got := f.bucketTimestamp("2024-01-01T12:03:30+02:00"); got != "2024-01-01T10:00:00" {
		t.Errorf("offset timestamp should normalize to UTC bucket, got %s", got)
	}
}

// TestGenerateMissingIdentityFields tests that absent identity fields
// join as empty strings rather than shifting positions.
func TestGenerateMissingIdentityFields(t *testing.T) {
	f := newTestFingerprinter(t, 5)

	obs := observation.Observation{"event_type": "system_health"}
	got := f.Generate(obs, true)
	want := keyDigest("::system_health")
	if got != want {
		t.Errorf("fingerprint: expected %s, got %s", want, got)
	}
}

// TestGenerateDisambiguatorOrder tests the fixed ordering of optional
// key fields.
func TestGenerateDisambiguatorOrder(t *testing.T) {
	f := newTestFingerprinter(t, 5)

	obs := observation.Observation{
		"db_id":       "db1",
		"table_name":  "orders",
		"event_type":  "index_usage",
		"query_hash":  "q",
		"index_name":  "i",
		"column_name": "c",
	}

	got := f.Generate(obs, true)
	want := keyDigest("db1:orders:index_usage:q:i:c")
	if got != want {
		t.Errorf("fingerprint: expected %s, got %s", want, got)
	}
}

// TestGenerateRawTimestamp tests that bucketTime=false joins the raw
// field text without parsing.
func TestGenerateRawTimestamp(t *testing.T) {
	f := newTestFingerprinter(t, 5)

	obs := observation.Observation{
		"db_id":      "db1",
		"table_name": "orders",
		"event_type": "slow_query",
		"timestamp":  "2024-01-01T10:03:30Z",
	}

	got := f.Generate(obs, false)
	want := keyDigest("db1:orders:slow_query:2024-01-01T10:03:30Z")
	if got != want {
		t.Errorf("fingerprint: expected %s, got %s", want, got)
	}
}

// TestGenerateTimestampPriority tests the candidate field order.
func TestGenerateTimestampPriority(t *testing.T) {
	f := newTestFingerprinter(t, 5)

	obs := observation.Observation{
		"db_id":       "db1",
		"table_name":  "orders",
		"event_type":  "slow_query",
		"timestamp":   "2024-01-01T10:00:00Z",
		"executed_at": "2023-06-06T06:06:06Z",
	}
	got := f.Generate(obs, true)
	want := keyDigest("db1:orders:slow_query:2024-01-01T10:00:00")
	if got != want {
		t.Error("timestamp field should win over executed_at")
	}

	delete(obs, "timestamp")
	got = f.Generate(obs, true)
	want = keyDigest("db1:orders:slow_query:2023-06-06T06:05:00")
	if got != want {
		t.Error("executed_at should be used when timestamp is absent")
	}
}

// TestGenerateUnparsableTimestampFallsBack tests that junk timestamps
// still yield a fingerprint, keyed on the current bucket.
func TestGenerateUnparsableTimestampFallsBack(t *testing.T) {
	f := newTestFingerprinter(t, 5)

	obs := observation.Observation{
		"db_id":      "db1",
		"table_name": "orders",
		"event_type": "slow_query",
		"timestamp":  "not-a-time",
	}

	got := f.Generate(obs, true)
	if len(got) != 64 {
		t.Fatalf("fingerprint should be 64 hex chars, got %d", len(got))
	}
	if got == keyDigest("db1:orders:slow_query") {
		t.Error("fallback should still contribute a timestamp part")
	}
}

// TestSetBucketIntervalValidation tests the [1, 60] range check.
func TestSetBucketIntervalValidation(t *testing.T) {
	f := newTestFingerprinter(t, 5)

	for _, minutes := range []int{1, 30, 60} {
		if err := f.SetBucketInterval(minutes); err != nil {
			t.Errorf("SetBucketInterval(%d) failed: %v", minutes, err)
		}
		if got := f.BucketInterval(); got != minutes {
			t.Errorf("BucketInterval: expected %d, got %d", minutes, got)
		}
	}

	if err := f.SetBucketInterval(60); err != nil {
		t.Fatal(err)
	}
	for _, minutes := range []int{0, -5, 61, 1440} {
		err := f.SetBucketInterval(minutes)
		if !errors.Is(err, ErrInvalidBucketInterval) {
			t.Errorf("SetBucketInterval(%d): expected ErrInvalidBucketInterval, got %v", minutes, err)
		}
		if got := f.BucketInterval(); got != 60 {
			t.Errorf("rejected change must keep the old width, got %d", got)
		}
	}

	if _, err := NewFingerprinter(0, zerolog.Nop()); !errors.Is(err, ErrInvalidBucketInterval) {
		t.Errorf("NewFingerprinter(0): expected ErrInvalidBucketInterval, got %v", err)
	}
}

// TestPrefix tests fingerprint shortening for log lines.
func TestPrefix(t *testing.T) {
	long := keyDigest("anything")
	if got := Prefix(long); got != long[:16] {
		t.Errorf("Prefix: expected %s, got %s", long[:16], got)
	}
	if got := Prefix("short"); got != "short" {
		t.Errorf("Prefix should pass short values through, got %s", got)
	}
}

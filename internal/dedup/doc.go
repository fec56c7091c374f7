// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package dedup decides whether an observation is new or a replay.
//
// Observations are identified by a SHA-256 content fingerprint over
// their identifying fields with the timestamp floored to a configurable
// bucket, so periodic re-collection of the same fact maps to the same
// fingerprint. Verdicts come from a two-tier check: an in-memory LRU
// cache with TTL expiry, then the analytics store as the authority on a
// miss. A store failure is treated as "not seen" so ingestion keeps
// flowing; the per-hypertable unique index catches anything that slips
// through.
package dedup

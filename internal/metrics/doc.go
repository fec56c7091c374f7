// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

/*
Package metrics provides Prometheus instrumentation for the ingestion core.

Collectors are registered at package init via promauto and exported at the
/metrics endpoint of the ops server. Recording goes through the Record* and
Set* helpers so call sites stay one-liners and label sets stay closed.

# Metric groups

Router:
  - events_received_total (counter, channel)
  - events_dropped_total (counter, channel, reason) with reason one of
    malformed, no_subscribers, unroutable
  - events_emitted_total / event_emit_failures_total (counter, channel)
  - handler_invocations_total / handler_errors_total (counter, channel)
  - event_dispatch_duration_seconds (histogram, channel)
  - router_active_channels (gauge)

Deduplication:
  - dedup_cache_hits_total / dedup_cache_misses_total / dedup_cache_evictions_total
  - dedup_cache_entries (gauge)
  - dedup_admitted_total / dedup_duplicates_total (counter, hypertable)
  - oracle_existence_checks_total / oracle_check_failures_total (counter, hypertable)
  - oracle_check_duration_seconds (histogram)
  - fingerprint_timestamp_fallbacks_total (counter)

Writes:
  - hypertable_inserts_total / hypertable_insert_failures_total /
    hypertable_late_duplicates_total (counter, hypertable)
  - hypertable_insert_duration_seconds (histogram, hypertable)

Resilience:
  - circuit_breaker_state (gauge, name; 0=closed 1=half-open 2=open)
  - circuit_breaker_trips_total (counter, name)
  - spool_pending_entries / spool_oldest_entry_age_seconds (gauge)
  - spool_appends_total (counter), spool_replays_total (counter, result)

Ops API:
  - api_requests_total (counter, method, endpoint, status_code)
  - api_request_duration_seconds (histogram, method, endpoint)

All helpers are safe for concurrent use; the Prometheus client handles
synchronization internally. Labels are drawn from closed sets (channel names,
hypertable names, fixed reasons) to keep cardinality bounded.
*/
package metrics

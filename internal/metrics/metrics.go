// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for events_dropped_total. Closed set; do not label with
// free-form strings.
const (
	DropMalformed     = "malformed"
	DropNoSubscribers = "no_subscribers"
	DropUnroutable    = "unroutable"
)

// Spool replay outcomes for spool_replays_total.
const (
	ReplaySuccess    = "success"
	ReplayFailed     = "failed"
	ReplayExpired    = "expired"
	ReplayMaxRetried = "max_retried"
)

var (
	// Event Router Metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_received_total",
			Help: "Total number of events received from the transport",
		},
		[]string{"channel"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of events dropped before dispatch",
		},
		[]string{"channel", "reason"},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_emitted_total",
			Help: "Total number of events published outward",
		},
		[]string{"channel"},
	)

	EmitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_emit_failures_total",
			Help: "Total number of failed outward publishes",
		},
		[]string{"channel"},
	)

	HandlerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handler_invocations_total",
			Help: "Total number of subscriber handler invocations",
		},
		[]string{"channel"},
	)

	HandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handler_errors_total",
			Help: "Total number of handler invocations that returned an error",
		},
		[]string{"channel"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_dispatch_duration_seconds",
			Help:    "Fan-out duration per event, all handlers joined",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	RouterActiveChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "router_active_channels",
			Help: "Number of channels with an open transport listen",
		},
	)

	// Deduplication Metrics
	DedupCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dedup_cache_hits_total",
			Help: "Existence checks answered from the fingerprint cache",
		},
	)

	DedupCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dedup_cache_misses_total",
			Help: "Existence checks that had to consult the durable store",
		},
	)

	DedupCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dedup_cache_evictions_total",
			Help: "Fingerprint cache entries evicted by TTL or capacity",
		},
	)

	DedupCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedup_cache_entries",
			Help: "Current number of fingerprint cache entries",
		},
	)

	DedupAdmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_admitted_total",
			Help: "Observations admitted as novel",
		},
		[]string{"hypertable"},
	)

	DedupDuplicates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_duplicates_total",
			Help: "Observations rejected as duplicates",
		},
		[]string{"hypertable"},
	)

	OracleChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_existence_checks_total",
			Help: "Existence probes issued to the durable store",
		},
		[]string{"hypertable"},
	)

	OracleCheckFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_check_failures_total",
			Help: "Existence probes that failed and degraded to not-found",
		},
		[]string{"hypertable"},
	)

	OracleCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_check_duration_seconds",
			Help:    "Duration of durable-store existence probes",
			Buckets: prometheus.DefBuckets,
		},
	)

	TimestampFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fingerprint_timestamp_fallbacks_total",
			Help: "Fingerprints computed with the degraded now-fallback timestamp",
		},
	)

	// Store Write Metrics
	Inserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertable_inserts_total",
			Help: "Successful durable inserts per hypertable",
		},
		[]string{"hypertable"},
	)

	InsertFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertable_insert_failures_total",
			Help: "Failed durable inserts per hypertable",
		},
		[]string{"hypertable"},
	)

	LateDuplicates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertable_late_duplicates_total",
			Help: "Inserts rejected by the store's unique index after admission",
		},
		[]string{"hypertable"},
	)

	InsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hypertable_insert_duration_seconds",
			Help:    "Duration of durable inserts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"hypertable"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=half-open, 2=open",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Circuit breaker transitions into the open state",
		},
		[]string{"name"},
	)

	// Spool Metrics
	SpoolDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spool_pending_entries",
			Help: "Observations waiting in the durable retry spool",
		},
	)

	SpoolOldestAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spool_oldest_entry_age_seconds",
			Help: "Age of the oldest spooled observation",
		},
	)

	SpoolAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spool_appends_total",
			Help: "Observations appended to the retry spool",
		},
	)

	SpoolReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spool_replays_total",
			Help: "Spool replay attempts by outcome",
		},
		[]string{"result"},
	)

	// Ops API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of ops API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Ops API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordEventReceived counts one inbound transport delivery.
func RecordEventReceived(channel string) {
	EventsReceived.WithLabelValues(channel).Inc()
}

// RecordEventDropped counts a drop with one of the Drop* reasons.
func RecordEventDropped(channel, reason string) {
	EventsDropped.WithLabelValues(channel, reason).Inc()
}

// RecordEmit counts an outward publish and its outcome.
func RecordEmit(channel string, err error) {
	EventsEmitted.WithLabelValues(channel).Inc()
	if err != nil {
		EmitFailures.WithLabelValues(channel).Inc()
	}
}

// RecordDispatch records one completed fan-out: total duration, how many
// handlers ran, and how many returned errors.
func RecordDispatch(channel string, duration time.Duration, invoked, failed int) {
	DispatchDuration.WithLabelValues(channel).Observe(duration.Seconds())
	if invoked > 0 {
		HandlerInvocations.WithLabelValues(channel).Add(float64(invoked))
	}
	if failed > 0 {
		HandlerErrors.WithLabelValues(channel).Add(float64(failed))
	}
}

// SetActiveChannels updates the open-listen gauge.
func SetActiveChannels(n int) {
	RouterActiveChannels.Set(float64(n))
}

// RecordCacheHit counts a fingerprint cache hit.
func RecordCacheHit() {
	DedupCacheHits.Inc()
}

// RecordCacheMiss counts a fingerprint cache miss.
func RecordCacheMiss() {
	DedupCacheMisses.Inc()
}

// RecordCacheEvictions counts n evicted entries and refreshes the size gauge.
func RecordCacheEvictions(n int, remaining int) {
	if n > 0 {
		DedupCacheEvictions.Add(float64(n))
	}
	DedupCacheEntries.Set(float64(remaining))
}

// SetCacheEntries updates the fingerprint cache size gauge.
func SetCacheEntries(n int) {
	DedupCacheEntries.Set(float64(n))
}

// RecordAdmission counts the dedup verdict for one observation.
func RecordAdmission(hypertable string, admitted bool) {
	if admitted {
		DedupAdmitted.WithLabelValues(hypertable).Inc()
	} else {
		DedupDuplicates.WithLabelValues(hypertable).Inc()
	}
}

// RecordOracleCheck records one durable-store existence probe.
func RecordOracleCheck(hypertable string, duration time.Duration, err error) {
	OracleChecks.WithLabelValues(hypertable).Inc()
	OracleCheckDuration.Observe(duration.Seconds())
	if err != nil {
		OracleCheckFailures.WithLabelValues(hypertable).Inc()
	}
}

// RecordTimestampFallback counts a degraded-mode fingerprint.
func RecordTimestampFallback() {
	TimestampFallbacks.Inc()
}

// RecordInsert records one durable insert attempt.
func RecordInsert(hypertable string, duration time.Duration, err error) {
	InsertDuration.WithLabelValues(hypertable).Observe(duration.Seconds())
	if err != nil {
		InsertFailures.WithLabelValues(hypertable).Inc()
		return
	}
	Inserts.WithLabelValues(hypertable).Inc()
}

// RecordLateDuplicate counts an insert the unique index turned away.
func RecordLateDuplicate(hypertable string) {
	LateDuplicates.WithLabelValues(hypertable).Inc()
}

// SetCircuitBreakerState updates the state gauge for a named breaker.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTrip counts a closed-to-open transition.
func RecordCircuitBreakerTrip(name string) {
	CircuitBreakerTrips.WithLabelValues(name).Inc()
}

// SetSpoolDepth updates the pending-entries gauge.
func SetSpoolDepth(n int) {
	SpoolDepth.Set(float64(n))
}

// SetSpoolOldestAge updates the oldest-entry gauge.
func SetSpoolOldestAge(age time.Duration) {
	SpoolOldestAge.Set(age.Seconds())
}

// RecordSpoolAppend counts one spooled observation.
func RecordSpoolAppend() {
	SpoolAppends.Inc()
}

// RecordSpoolReplay counts one replay attempt with a Replay* result.
func RecordSpoolReplay(result string) {
	SpoolReplays.WithLabelValues(result).Inc()
}

// RecordAPIRequest records one ops API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

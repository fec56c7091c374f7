// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package health

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dbvigil/dbvigil/internal/dedup"
	"github.com/dbvigil/dbvigil/internal/spool"
)

// Pinger is the slice of the store contract the health checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck probes store connectivity.
func StoreCheck(store Pinger) Checkable {
	return CheckFunc(func(ctx context.Context) ComponentHealth {
		if err := store.Ping(ctx); err != nil {
			return ComponentHealth{
				Healthy: false,
				Error:   err.Error(),
			}
		}
		return ComponentHealth{
			Healthy: true,
			Message: "store is reachable",
		}
	})
}

// BreakerStater exposes circuit breaker state.
type BreakerStater interface {
	State() gobreaker.State
}

// BreakerCheck reports the store circuit breaker state. Open is
// unhealthy, half-open is degraded.
func BreakerCheck(breaker BreakerStater) Checkable {
	return CheckFunc(func(_ context.Context) ComponentHealth {
		state := breaker.State()
		details := map[string]interface{}{
			"circuit_breaker_state": state.String(),
		}
		switch state {
		case gobreaker.StateOpen:
			return ComponentHealth{
				Healthy: false,
				Error:   "circuit breaker is open",
				Details: details,
			}
		case gobreaker.StateHalfOpen:
			return ComponentHealth{
				Healthy:  true,
				Degraded: true,
				Message:  "circuit breaker is half-open",
				Details:  details,
			}
		default:
			return ComponentHealth{
				Healthy: true,
				Message: "circuit breaker is closed",
				Details: details,
			}
		}
	})
}

// RouterStatus is the slice of the router contract the health checker
// needs.
type RouterStatus interface {
	Running() bool
	ActiveChannels() []string
}

// RouterCheck reports whether the event router is consuming channels.
func RouterCheck(router RouterStatus) Checkable {
	return CheckFunc(func(_ context.Context) ComponentHealth {
		channels := router.ActiveChannels()
		details := map[string]interface{}{
			"active_channels": channels,
		}
		if !router.Running() {
			return ComponentHealth{
				Healthy: false,
				Error:   "router is not running",
				Details: details,
			}
		}
		if len(channels) == 0 {
			return ComponentHealth{
				Healthy:  true,
				Degraded: true,
				Message:  "router has no subscribed channels",
				Details:  details,
			}
		}
		return ComponentHealth{
			Healthy: true,
			Message: "router is running",
			Details: details,
		}
	})
}

// DedupCheck reports verdict cache pressure. A cache at capacity still
// works (entries get evicted) but dedup accuracy drops, so it is
// reported as degraded.
func DedupCheck(engine *dedup.Engine) Checkable {
	return CheckFunc(func(_ context.Context) ComponentHealth {
		stats := engine.CacheStats()
		details := map[string]interface{}{
			"entries":   stats.Entries,
			"capacity":  stats.Capacity,
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"evictions": stats.Evictions,
			"hit_rate":  stats.HitRate,
		}
		if stats.Capacity > 0 && stats.Entries >= stats.Capacity {
			return ComponentHealth{
				Healthy:  true,
				Degraded: true,
				Message:  "verdict cache at capacity",
				Details:  details,
			}
		}
		return ComponentHealth{
			Healthy: true,
			Message: "deduplication engine is operational",
			Details: details,
		}
	})
}

// SpoolCheck reports retry journal depth. A backlog older than an hour
// means the store has been down for a while.
func SpoolCheck(sp spool.Spool) Checkable {
	return CheckFunc(func(_ context.Context) ComponentHealth {
		stats := sp.Stats()
		details := map[string]interface{}{
			"pending":       stats.Pending,
			"total_appends": stats.TotalAppends,
			"total_replays": stats.TotalReplays,
		}
		if !stats.OldestEntry.IsZero() {
			details["oldest_entry"] = stats.OldestEntry.Format(time.RFC3339)
			details["oldest_entry_age"] = time.Since(stats.OldestEntry).String()
		}
		if stats.Pending > 0 && time.Since(stats.OldestEntry) > time.Hour {
			return ComponentHealth{
				Healthy:  true,
				Degraded: true,
				Message:  "spool backlog is aging",
				Details:  details,
			}
		}
		return ComponentHealth{
			Healthy: true,
			Message: "spool is draining",
			Details: details,
		}
	})
}

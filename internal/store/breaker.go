// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/dbvigil/dbvigil/internal/metrics"
)

// BreakerConfig holds circuit breaker tuning for the store.
type BreakerConfig struct {
	// Name labels the breaker in logs and metrics.
	Name string

	// FailureThreshold is the consecutive-failure count that trips the
	// breaker. Default 5.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before probing.
	// Default 30s.
	OpenTimeout time.Duration

	// HalfOpenRequests is how many probes the half-open state allows.
	// Default 1.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig returns the stock breaker tuning.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// BreakerStore wraps any Store with a circuit breaker so a failing
// database degrades to fast errors instead of piling up slow ones. The
// dedup engine already treats read errors as "not found", so an open
// breaker costs duplicates, never blocked ingestion.
type BreakerStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker[any]
	logger  zerolog.Logger
}

// NewBreakerStore wraps a store. Only connection-class failures count
// toward the trip threshold; constraint violations and bad statements
// are the caller's problem, not the store's health.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBreakerStore(inner Store, cfg BreakerConfig, logger zerolog.Logger) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsConnectionError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("store circuit breaker state change")
			metrics.SetCircuitBreakerState(name, int(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	}

	return &BreakerStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// State returns the breaker state for health reporting.
func (s *BreakerStore) State() gobreaker.State { return s.breaker.State() }

func (s *BreakerStore) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	return s.breaker.Execute(func() (any, error) {
		return s.inner.QueryValue(ctx, query, args...)
	})
}

func (s *BreakerStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	affected, err := s.breaker.Execute(func() (any, error) {
		return s.inner.Exec(ctx, query, args...)
	})
	if err != nil {
		return 0, err
	}
	n, _ := affected.(int64)
	return n, nil
}

func (s *BreakerStore) Ping(ctx context.Context) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.inner.Ping(ctx)
	})
	return err
}

func (s *BreakerStore) Close() error { return s.inner.Close() }

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package main is the entry point for the dbvigil ingestion agent.
//
// The agent subscribes to the monitoring channels on the notification
// fabric, deduplicates incoming observations against the analytics
// store, and persists novel ones into the _agentic schema.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layering (defaults, YAML file, env vars)
//  2. Store: PostgreSQL/TimescaleDB or embedded DuckDB, behind a
//     circuit breaker, schema bootstrapped
//  3. Bus: PostgreSQL LISTEN/NOTIFY, NATS (build tag "nats"), or the
//     in-process fabric
//  4. Dedup engine, audit trail, spool (build tag "spool"), pipeline
//  5. Supervisor tree: router, janitor, spool retry loop, ops API
//
// # Build Tags
//
//	go build -tags "nats" ./cmd/agent        # NATS bus backend
//	go build -tags "spool" ./cmd/agent      # BadgerDB retry spool
//	go build -tags "nats,spool" ./cmd/agent # both
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the router drains
// in-flight dispatches within its grace period, the HTTP server
// finishes open requests, and the store and bus close last.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/api"
	"github.com/dbvigil/dbvigil/internal/bus"
	"github.com/dbvigil/dbvigil/internal/config"
	"github.com/dbvigil/dbvigil/internal/dedup"
	"github.com/dbvigil/dbvigil/internal/health"
	"github.com/dbvigil/dbvigil/internal/logging"
	"github.com/dbvigil/dbvigil/internal/observation"
	"github.com/dbvigil/dbvigil/internal/pipeline"
	"github.com/dbvigil/dbvigil/internal/router"
	"github.com/dbvigil/dbvigil/internal/spool"
	"github.com/dbvigil/dbvigil/internal/store"
	"github.com/dbvigil/dbvigil/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dbvigil: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logger.Info().
		Str("store_backend", cfg.Store.Backend).
		Str("bus_backend", cfg.Bus.Backend).
		Int("bucket_minutes", cfg.Dedup.BucketMinutes).
		Msg("dbvigil agent starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store, breaker, schema.
	rawStore, err := openStore(ctx, cfg, logging.Component(logger, "store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer rawStore.Close()

	breaker := store.NewBreakerStore(rawStore, store.BreakerConfig{
		Name:             "analytics-store",
		FailureThreshold: cfg.Store.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Store.Breaker.OpenTimeout,
	}, logging.Component(logger, "breaker"))

	timescale := cfg.Store.Backend == config.StoreBackendPostgres && cfg.Store.Timescale
	if err := store.Bootstrap(ctx, rawStore, timescale, logging.Component(logger, "store")); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}

	// Notification fabric.
	fabric, err := openBus(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}
	defer fabric.Close()

	// Dedup engine over the breaker-guarded store.
	engine, err := dedup.NewEngine(breaker, dedup.Config{
		CacheTTL:      cfg.Dedup.CacheTTL,
		CacheCapacity: cfg.Dedup.CacheCapacity,
		BucketMinutes: cfg.Dedup.BucketMinutes,
		Lookback:      cfg.Dedup.Lookback,
	}, logging.Component(logger, "dedup"))
	if err != nil {
		return fmt.Errorf("build dedup engine: %w", err)
	}

	// Audit trail (nil when no path is configured).
	audit, err := logging.NewAuditTrail(logging.AuditConfig{
		Path:     cfg.Audit.Path,
		MaxBytes: cfg.Audit.MaxBytes,
	}, logging.Component(logger, "audit"))
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	if audit != nil {
		defer audit.Close()
	}

	// Durable retry spool (build tag "spool").
	var journal *spool.BadgerSpool
	if cfg.Spool.Enabled {
		journal, err = spool.Open(spool.Config{
			Path:          cfg.Spool.Path,
			RetryInterval: cfg.Spool.RetryInterval,
			MaxAttempts:   cfg.Spool.MaxAttempts,
			EntryTTL:      cfg.Spool.EntryTTL,
			SyncWrites:    cfg.Spool.SyncWrites,
		}, logging.Component(logger, "spool"))
		if err != nil {
			return fmt.Errorf("open spool: %w", err)
		}
		defer journal.Close()
	}

	// Ingestion pipeline.
	var spooler pipeline.Spooler
	if journal != nil {
		spooler = journal
	}
	pipe := pipeline.New(engine, breaker, spooler, audit, pipeline.Config{
		Lookback: cfg.Dedup.Lookback,
	}, logging.Component(logger, "pipeline"))

	// Event router: the pipeline consumes every conventional channel;
	// routing by event type happens inside the pipeline.
	rtr := router.New(fabric, router.Config{
		GracePeriod:       cfg.Router.GracePeriod,
		DispatchPerSecond: cfg.Router.DispatchPerSecond,
		DispatchBurst:     cfg.Router.DispatchBurst,
	}, logging.Component(logger, "router"))
	for _, channel := range observation.Channels() {
		rtr.Subscribe(channel, pipe)
	}

	// Health checks.
	checker := health.NewChecker(health.DefaultConfig())
	checker.Register("store", health.StoreCheck(rawStore))
	checker.Register("breaker", health.BreakerCheck(breaker))
	checker.Register("router", health.RouterCheck(rtr))
	checker.Register("dedup", health.DedupCheck(engine))
	if journal != nil {
		checker.Register("spool", health.SpoolCheck(journal))
	}

	// Supervisor tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(logging.Component(logger, "supervisor")), supervisor.DefaultTreeConfig())
	tree.AddIngestService(supervisor.NewRunnerService("event-router", rtr))
	tree.AddDataService(supervisor.NewJanitor(cfg.Dedup.CacheTTL/2,
		engine.CleanupCache,
		func() int { return engine.CacheStats().Entries },
		logging.Component(logger, "janitor")))
	if journal != nil {
		retry := spool.NewRetryLoop(journal, pipe, logging.Component(logger, "spool-retry"))
		tree.AddDataService(supervisor.NewRunnerService("spool-retry-loop", retry))
	}
	if cfg.API.Enabled {
		opsServer := api.NewServer(api.Config{
			Addr:            cfg.API.Addr(),
			Timeout:         cfg.API.Timeout,
			RateLimitReqs:   cfg.API.RateLimitReqs,
			RateLimitWindow: cfg.API.RateLimitWindow,
		}, engine, rtr, spoolOrNil(journal), checker, logging.Component(logger, "api"))
		tree.AddAPIService(supervisor.NewHTTPService(opsServer.HTTPServer(), cfg.API.Timeout))
		logger.Info().Str("addr", cfg.API.Addr()).Msg("ops API enabled")
	}

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor tree failed: %w", err)
	}
	logger.Info().Msg("dbvigil agent stopped")
	return nil
}

// spoolOrNil avoids handing the API a typed-nil Spool interface.
func spoolOrNil(journal *spool.BadgerSpool) spool.Spool {
	if journal == nil {
		return nil
	}
	return journal
}

// openStore builds the configured store backend.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		pgCfg := store.DefaultPostgresConfig(cfg.Store.DSN)
		if cfg.Store.MaxOpenConns > 0 {
			pgCfg.MaxOpenConns = cfg.Store.MaxOpenConns
		}
		return store.NewPostgresStore(ctx, pgCfg, logger)
	case config.StoreBackendDuckDB:
		return store.NewDuckDBStore(ctx, store.DuckDBConfig{
			Path:      cfg.Store.Path,
			MaxMemory: cfg.Store.MaxMemory,
			Threads:   cfg.Store.Threads,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openBus builds the configured notification fabric.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func openBus(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (bus.Bus, error) {
	switch cfg.Bus.Backend {
	case config.BusBackendPostgres:
		dsn := cfg.Bus.DSN
		if dsn == "" {
			dsn = cfg.Store.DSN
		}
		return bus.NewPostgresBus(ctx, bus.DefaultPostgresConfig(dsn), logging.Component(logger, "bus"))
	case config.BusBackendNATS:
		natsCfg := bus.DefaultNATSConfig(cfg.Bus.NATS.URL)
		natsCfg.Embedded = cfg.Bus.NATS.Embedded
		natsCfg.EmbeddedHost = cfg.Bus.NATS.EmbeddedHost
		natsCfg.EmbeddedPort = cfg.Bus.NATS.EmbeddedPort
		return bus.NewNATSBus(natsCfg, logging.Component(logger, "bus"))
	case config.BusBackendMemory:
		return bus.NewMemoryBus(logging.Component(logger, "bus")), nil
	default:
		return nil, fmt.Errorf("unknown bus backend %q", cfg.Bus.Backend)
	}
}

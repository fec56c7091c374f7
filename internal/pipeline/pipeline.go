// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package pipeline composes the ingestion path: route an observation
// event to its hypertable, ask the deduplication engine for an
// admission verdict, render the typed insert, execute it against the
// store, and mark the fingerprint seen. It subscribes to the router as
// an ordinary handler.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/dedup"
	"github.com/dbvigil/dbvigil/internal/logging"
	"github.com/dbvigil/dbvigil/internal/metrics"
	"github.com/dbvigil/dbvigil/internal/observation"
	"github.com/dbvigil/dbvigil/internal/spool"
	"github.com/dbvigil/dbvigil/internal/sqlgen"
)

// Deduplicator is the admission gate. Satisfied by *dedup.Engine.
type Deduplicator interface {
	ShouldInsert(ctx context.Context, obs observation.Observation, hypertable string, lookback time.Duration) (bool, string)
	MarkInserted(fingerprint, hypertable string)
}

// Writer is the store's write path. Satisfied by store.Store.
type Writer interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Spooler journals admitted observations whose insert failed, for
// background replay. Satisfied by the badger spool; nil disables
// spooling.
type Spooler interface {
	Append(ctx context.Context, entry spool.Entry) error
}

// Config carries pipeline tuning.
type Config struct {
	// Lookback bounds dedup existence probes. Zero uses the engine
	// default.
	Lookback time.Duration

	// Routes maps event types to hypertables. Nil uses DefaultRoutes.
	Routes map[string]string
}

// Pipeline is the subscriber that persists novel observations.
type Pipeline struct {
	dedup  Deduplicator
	writer Writer
	spool  Spooler
	audit  *logging.AuditTrail
	routes map[string]string
	cfg    Config
	logger zerolog.Logger
}

// New wires the ingestion pipeline. spooler and audit may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(deduper Deduplicator, writer Writer, spooler Spooler, audit *logging.AuditTrail, cfg Config, logger zerolog.Logger) *Pipeline {
	routes := cfg.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}

	return &Pipeline{
		dedup:  deduper,
		writer: writer,
		spool:  spooler,
		audit:  audit,
		routes: routes,
		cfg:    cfg,
		logger: logger,
	}
}

// Name implements router.Handler.
func (p *Pipeline) Name() string { return "ingestion-pipeline" }

// HandleEvent implements router.Handler: one observation in, one
// admission decision out. Errors surface to the router's dispatch
// barrier, which logs them; retry policy stays with the spool.
func (p *Pipeline) HandleEvent(ctx context.Context, channel string, obs observation.Observation) error {
	eventType := obs.EventType()

	hypertable, ok := p.routes[eventType]
	if !ok {
		metrics.RecordEventDropped(channel, metrics.DropUnroutable)
		p.logger.Warn().
			Str("channel", channel).
			Str("event_type", eventType).
			Msg("no hypertable route for event type, dropped")
		p.audit.Record(logging.AuditEvent{
			Time:      time.Now().UTC(),
			Decision:  logging.AuditDropped,
			Channel:   channel,
			EventType: eventType,
			DBID:      obs.DBID(),
			Detail:    "unroutable event type",
		})
		return nil
	}

	return p.Ingest(ctx, channel, hypertable, obs)
}

// Ingest runs the admission cycle for one observation against a known
// hypertable. Exposed separately so the spool's replay loop and probes
// with fixed destinations can bypass event-type routing.
func (p *Pipeline) Ingest(ctx context.Context, channel, hypertable string, obs observation.Observation) error {
	admit, fingerprint := p.dedup.ShouldInsert(ctx, obs, hypertable, p.cfg.Lookback)
	if !admit {
		p.logger.Debug().
			Str("hypertable", hypertable).
			Str("fingerprint", dedup.Prefix(fingerprint)).
			Msg("duplicate observation rejected")
		p.audit.Record(logging.AuditEvent{
			Time:        time.Now().UTC(),
			Decision:    logging.AuditDuplicate,
			Channel:     channel,
			EventType:   obs.EventType(),
			Hypertable:  hypertable,
			DBID:        obs.DBID(),
			Fingerprint: dedup.Prefix(fingerprint),
		})
		return nil
	}

	ts, parsed := obs.ObservedAt()
	if !parsed {
		p.logger.Warn().
			Str("hypertable", hypertable).
			Str("event_type", obs.EventType()).
			Msg("observation carries no usable timestamp, using current time")
	}

	affected, err := p.insert(ctx, hypertable, obs, ts, fingerprint)
	if err != nil {
		// Not marked inserted: a legitimate retry of this observation
		// must not be mistaken for a duplicate.
		p.logger.Error().Err(err).
			Str("hypertable", hypertable).
			Str("fingerprint", dedup.Prefix(fingerprint)).
			Msg("durable insert failed")
		p.audit.Record(logging.AuditEvent{
			Time:        time.Now().UTC(),
			Decision:    logging.AuditInsertFailed,
			Channel:     channel,
			EventType:   obs.EventType(),
			Hypertable:  hypertable,
			DBID:        obs.DBID(),
			Fingerprint: dedup.Prefix(fingerprint),
			Detail:      err.Error(),
		})
		p.enqueueRetry(ctx, hypertable, fingerprint, obs)
		return fmt.Errorf("insert into %s: %w", hypertable, err)
	}

	if affected == 0 {
		// The unique index caught a duplicate the cache had admitted;
		// benign race between concurrent admission checks.
		metrics.RecordLateDuplicate(hypertable)
		p.dedup.MarkInserted(fingerprint, hypertable)
		p.logger.Debug().
			Str("hypertable", hypertable).
			Str("fingerprint", dedup.Prefix(fingerprint)).
			Msg("late duplicate collapsed by unique index")
		p.audit.Record(logging.AuditEvent{
			Time:        time.Now().UTC(),
			Decision:    logging.AuditLateDuplicate,
			Channel:     channel,
			EventType:   obs.EventType(),
			Hypertable:  hypertable,
			DBID:        obs.DBID(),
			Fingerprint: dedup.Prefix(fingerprint),
		})
		return nil
	}

	p.dedup.MarkInserted(fingerprint, hypertable)
	p.audit.Record(logging.AuditEvent{
		Time:        time.Now().UTC(),
		Decision:    logging.AuditAdmitted,
		Channel:     channel,
		EventType:   obs.EventType(),
		Hypertable:  hypertable,
		DBID:        obs.DBID(),
		Fingerprint: dedup.Prefix(fingerprint),
	})
	return nil
}

// insert renders and executes the typed insert for a hypertable.
func (p *Pipeline) insert(ctx context.Context, hypertable string, obs observation.Observation, ts time.Time, fingerprint string) (int64, error) {
	intent, err := buildInsert(hypertable, obs, ts, fingerprint)
	if err != nil {
		return 0, err
	}

	query, args, err := sqlgen.Render(intent)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	affected, err := p.writer.Exec(ctx, query, args...)
	metrics.RecordInsert(hypertable, time.Since(start), err)
	return affected, err
}

// enqueueRetry journals a failed insert for background replay when the
// spool is enabled.
func (p *Pipeline) enqueueRetry(ctx context.Context, hypertable, fingerprint string, obs observation.Observation) {
	if p.spool == nil {
		return
	}

	entry, err := spool.NewEntry(hypertable, fingerprint, obs)
	if err != nil {
		p.logger.Error().Err(err).Str("hypertable", hypertable).Msg("spool entry encode failed")
		return
	}
	if err := p.spool.Append(ctx, entry); err != nil {
		p.logger.Error().Err(err).Str("hypertable", hypertable).Msg("spool append failed")
		return
	}
	metrics.RecordSpoolAppend()
}

// Replay implements the spool's replay contract: it re-runs the insert
// for a journaled observation. The dedup cycle is re-entered so a row
// that arrived by another path in the meantime collapses normally.
func (p *Pipeline) Replay(ctx context.Context, entry spool.Entry) error {
	obs, err := entry.Observation()
	if err != nil {
		return fmt.Errorf("decode spooled observation: %w", err)
	}
	return p.Ingest(ctx, "spool", entry.Hypertable, obs)
}

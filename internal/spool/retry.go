// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

//go:build spool

package spool

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/metrics"
)

// Replayer re-runs one journaled observation's insert. Satisfied by
// the ingestion pipeline.
type Replayer interface {
	Replay(ctx context.Context, entry Entry) error
}

// backoffCap bounds exponential replay backoff.
const backoffCap = 5 * time.Minute

// RetryLoop drains the spool in the background: on each tick it
// replays every due pending entry, confirming successes and dropping
// entries that expired or ran out of attempts.
type RetryLoop struct {
	spool    *BadgerSpool
	replayer Replayer
	cfg      Config
	logger   zerolog.Logger
}

// NewRetryLoop builds the background replay loop.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRetryLoop(sp *BadgerSpool, replayer Replayer, logger zerolog.Logger) *RetryLoop {
	return &RetryLoop{
		spool:    sp,
		replayer: replayer,
		cfg:      sp.cfg,
		logger:   logger,
	}
}

// Run drains pending entries until the context ends. It implements the
// supervised-service shape: block on ctx, return ctx.Err().
func (r *RetryLoop) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("interval", r.cfg.RetryInterval).
		Int("max_attempts", r.cfg.MaxAttempts).
		Msg("spool retry loop started")

	// Replay whatever a previous process left behind before the first
	// tick.
	r.drain(ctx)

	ticker := time.NewTicker(r.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("spool retry loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain replays every due entry once.
func (r *RetryLoop) drain(ctx context.Context) {
	entries, err := r.spool.Pending(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("spool scan failed")
		return
	}
	if len(entries) == 0 {
		metrics.SetSpoolDepth(0)
		return
	}

	now := time.Now().UTC()
	remaining := len(entries)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		switch {
		case expired(entry, r.cfg.EntryTTL, now):
			r.discard(entry, "entry TTL exceeded", metrics.ReplayExpired)
			remaining--
			continue
		case entry.Attempts >= r.cfg.MaxAttempts:
			r.discard(entry, "max replay attempts exceeded", metrics.ReplayMaxRetried)
			remaining--
			continue
		case !due(entry, now):
			continue
		}

		if err := r.replayer.Replay(ctx, entry); err != nil {
			entry.Attempts++
			entry.LastAttemptAt = now
			entry.LastError = err.Error()
			if uerr := r.spool.update(entry); uerr != nil {
				r.logger.Error().Err(uerr).Str("entry_id", entry.ID).Msg("spool entry update failed")
			}
			metrics.RecordSpoolReplay(metrics.ReplayFailed)
			r.logger.Warn().Err(err).
				Str("entry_id", entry.ID).
				Str("hypertable", entry.Hypertable).
				Int("attempts", entry.Attempts).
				Msg("spool replay failed")
			continue
		}

		if err := r.spool.Confirm(ctx, entry.ID); err != nil {
			r.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("spool confirm failed")
			continue
		}
		metrics.RecordSpoolReplay(metrics.ReplaySuccess)
		remaining--
	}

	metrics.SetSpoolDepth(remaining)
	if remaining > 0 {
		oldest := entries[0].CreatedAt
		metrics.SetSpoolOldestAge(time.Since(oldest))
	} else {
		metrics.SetSpoolOldestAge(0)
	}
}

// discard drops an entry that will never replay.
func (r *RetryLoop) discard(entry Entry, reason, result string) {
	if err := r.spool.drop(entry.ID); err != nil {
		r.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("spool drop failed")
		return
	}
	metrics.RecordSpoolReplay(result)
	r.logger.Warn().
		Str("entry_id", entry.ID).
		Str("hypertable", entry.Hypertable).
		Int("attempts", entry.Attempts).
		Str("reason", reason).
		Msg("spool entry discarded")
}

// expired reports whether an entry outlived its TTL.
func expired(entry Entry, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(entry.CreatedAt) > ttl
}

// due applies exponential backoff between replay attempts, capped at
// backoffCap.
func due(entry Entry, now time.Time) bool {
	if entry.Attempts == 0 || entry.LastAttemptAt.IsZero() {
		return true
	}
	backoff := backoffCap
	if entry.Attempts < 10 {
		if b := time.Second << uint(entry.Attempts); b < backoffCap {
			backoff = b
		}
	}
	return now.Sub(entry.LastAttemptAt) >= backoff
}

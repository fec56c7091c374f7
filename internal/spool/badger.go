// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

//go:build spool

package spool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const pendingPrefix = "pending:"

// BadgerSpool is the durable journal over BadgerDB.
type BadgerSpool struct {
	db     *badger.DB
	cfg    Config
	logger zerolog.Logger

	appends atomic.Int64
	replays atomic.Int64

	mu     sync.Mutex
	closed bool
}

// Open creates or reopens the journal at cfg.Path.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg Config, logger zerolog.Logger) (*BadgerSpool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}

	s := &BadgerSpool{db: db, cfg: cfg, logger: logger}

	pending, err := s.Pending(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info().
		Str("path", cfg.Path).
		Int("pending", len(pending)).
		Msg("spool opened")
	return s, nil
}

// Append journals one entry durably.
func (s *BadgerSpool) Append(ctx context.Context, entry Entry) error {
	if err := s.guard(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode spool entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(pendingPrefix+entry.ID), data)
	})
	if err != nil {
		return fmt.Errorf("append spool entry: %w", err)
	}

	s.appends.Add(1)
	s.logger.Debug().
		Str("entry_id", entry.ID).
		Str("hypertable", entry.Hypertable).
		Msg("observation spooled for retry")
	return nil
}

// Confirm removes a successfully replayed entry.
func (s *BadgerSpool) Confirm(ctx context.Context, id string) error {
	if err := s.guard(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(pendingPrefix + id)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("confirm spool entry %s: %w", id, err)
	}

	s.replays.Add(1)
	return nil
}

// update rewrites an entry in place after a failed replay attempt.
func (s *BadgerSpool) update(entry Entry) error {
	if err := s.guard(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode spool entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(pendingPrefix+entry.ID), data)
	})
}

// drop removes an entry that will never be replayed (expired or out of
// attempts).
func (s *BadgerSpool) drop(id string) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(pendingPrefix + id))
	})
}

// Pending returns unconfirmed entries, oldest first.
func (s *BadgerSpool) Pending(ctx context.Context) ([]Entry, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pendingPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan spool: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Stats snapshots journal counters.
func (s *BadgerSpool) Stats() Stats {
	stats := Stats{
		TotalAppends: s.appends.Load(),
		TotalReplays: s.replays.Load(),
	}

	entries, err := s.Pending(context.Background())
	if err != nil {
		return stats
	}
	stats.Pending = int64(len(entries))
	if len(entries) > 0 {
		stats.OldestEntry = entries[0].CreatedAt
	}
	return stats
}

// Close releases the journal.
func (s *BadgerSpool) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

func (s *BadgerSpool) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSpoolClosed
	}
	return nil
}

var _ Spool = (*BadgerSpool)(nil)

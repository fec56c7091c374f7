// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package bus

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// PostgresConfig holds the LISTEN/NOTIFY fabric tuning.
type PostgresConfig struct {
	// DSN is the connection string for the store carrying the
	// notification channels.
	DSN string

	// MinReconnect and MaxReconnect bound pq.Listener's backoff when
	// the listen connection drops.
	MinReconnect time.Duration
	MaxReconnect time.Duration

	// PingInterval is how often idle listeners verify their
	// connection.
	PingInterval time.Duration
}

// DefaultPostgresConfig returns the stock LISTEN/NOTIFY tuning.
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:          dsn,
		MinReconnect: time.Second,
		MaxReconnect: 30 * time.Second,
		PingInterval: 90 * time.Second,
	}
}

// PostgresBus carries notifications over PostgreSQL LISTEN/NOTIFY.
// Each subscription holds its own pq.Listener; Notify goes through a
// shared pool via pg_notify.
type PostgresBus struct {
	cfg    PostgresConfig
	db     *sql.DB
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	subs   map[*pgSubscription]struct{}
}

// NewPostgresBus opens the notify pool and verifies connectivity.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPostgresBus(ctx context.Context, cfg PostgresConfig, logger zerolog.Logger) (*PostgresBus, error) {
	if cfg.MinReconnect <= 0 {
		cfg.MinReconnect = time.Second
	}
	if cfg.MaxReconnect <= 0 {
		cfg.MaxReconnect = 30 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 90 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	// The notify pool is low traffic; two connections cover it.
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &TransportError{Op: "connect", Err: err}
	}

	return &PostgresBus{
		cfg:    cfg,
		db:     db,
		logger: logger,
		subs:   make(map[*pgSubscription]struct{}),
	}, nil
}

// Listen opens a dedicated LISTEN connection on one channel.
func (b *PostgresBus) Listen(ctx context.Context, channel string) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, &TransportError{Op: "listen", Channel: channel, Err: ErrBusClosed}
	}
	b.mu.Unlock()

	logger := b.logger.With().Str("channel", channel).Logger()
	listener := pq.NewListener(b.cfg.DSN, b.cfg.MinReconnect, b.cfg.MaxReconnect,
		func(event pq.ListenerEventType, err error) {
			switch event {
			case pq.ListenerEventDisconnected:
				logger.Warn().Err(err).Msg("listen connection lost, reconnecting")
			case pq.ListenerEventReconnected:
				logger.Info().Msg("listen connection restored")
			case pq.ListenerEventConnectionAttemptFailed:
				logger.Warn().Err(err).Msg("listen reconnect attempt failed")
			case pq.ListenerEventConnected:
				// First connect, nothing to report.
			}
		})

	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, &TransportError{Op: "listen", Channel: channel, Err: err}
	}

	sub := &pgSubscription{
		channel:  channel,
		listener: listener,
		out:      make(chan Message),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
	}
	go sub.pump(ctx, b.cfg.PingInterval, logger)

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	logger.Debug().Msg("postgres listen opened")
	return sub, nil
}

// Notify publishes a payload via pg_notify. Payloads above the 8000
// byte NOTIFY limit are rejected by the server, not truncated here.
func (b *PostgresBus) Notify(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return &TransportError{Op: "notify", Channel: channel, Err: ErrBusClosed}
	}
	b.mu.Unlock()

	if _, err := b.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, string(payload)); err != nil {
		return &TransportError{Op: "notify", Channel: channel, Err: err}
	}
	return nil
}

// Close ends every subscription and releases the notify pool.
func (b *PostgresBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*pgSubscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			b.logger.Warn().Err(err).Str("channel", sub.channel).Msg("subscription close failed")
		}
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close notify pool: %w", err)
	}
	return nil
}

// pgSubscription is one LISTEN connection feeding the bus Message
// shape.
type pgSubscription struct {
	channel  string
	listener *pq.Listener
	out      chan Message
	done     chan struct{}
	quit     chan struct{}

	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (s *pgSubscription) pump(ctx context.Context, pingInterval time.Duration, logger zerolog.Logger) {
	defer close(s.out)
	defer close(s.done)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case n, ok := <-s.listener.Notify:
			if !ok {
				s.setErr(&TransportError{Op: "listen", Channel: s.channel, Err: ErrBusClosed})
				return
			}
			if n == nil {
				// Reconnect marker from pq; notifications sent while
				// disconnected are gone. Deduplication downstream makes
				// the gap safe to resume over.
				logger.Warn().Msg("listen reconnected, notifications may have been missed")
				continue
			}
			select {
			case s.out <- Message{Channel: s.channel, Payload: []byte(n.Extra)}:
			case <-s.quit:
				return
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		case <-ping.C:
			if err := s.listener.Ping(); err != nil {
				logger.Warn().Err(err).Msg("listen ping failed")
			}
		case <-s.quit:
			return
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
}

func (s *pgSubscription) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

func (s *pgSubscription) Messages() <-chan Message { return s.out }

func (s *pgSubscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *pgSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		err = s.listener.Close()
	})
	<-s.done
	return err
}

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

//go:build nats

package bus

import (
	"context"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig holds the NATS fabric tuning. Channel names map directly
// to subjects.
type NATSConfig struct {
	// URL is the server to connect to; ignored when Embedded is set.
	URL string

	// Embedded starts an in-process NATS server and connects to it.
	Embedded bool

	// EmbeddedHost and EmbeddedPort bind the embedded server.
	EmbeddedHost string
	EmbeddedPort int

	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the stock NATS tuning.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		EmbeddedHost:  "127.0.0.1",
		EmbeddedPort:  4222,
		MaxReconnects: -1, // retry forever
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBus carries notifications over NATS core pub/sub. Delivery is
// at-most-once on the wire; the dedup engine downstream makes replays
// after reconnect gaps safe.
type NATSBus struct {
	conn     *natsgo.Conn
	embedded *EmbeddedServer
	logger   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewNATSBus connects to NATS, starting an embedded server first when
// configured.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) (*NATSBus, error) {
	url := cfg.URL

	var embedded *EmbeddedServer
	if cfg.Embedded {
		var err error
		embedded, err = NewEmbeddedServer(cfg.EmbeddedHost, cfg.EmbeddedPort)
		if err != nil {
			return nil, &TransportError{Op: "embedded server", Err: err}
		}
		url = embedded.ClientURL()
		logger.Info().Str("url", url).Msg("embedded NATS server started")
	}

	opts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		natsgo.ErrorHandler(func(nc *natsgo.Conn, sub *natsgo.Subscription, err error) {
			event := logger.Warn().Err(err)
			if sub != nil {
				event = event.Str("subject", sub.Subject)
			}
			event.Msg("NATS error")
		}),
	}

	conn, err := natsgo.Connect(url, opts...)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, &TransportError{Op: "connect", Err: err}
	}

	return &NATSBus{
		conn:     conn,
		embedded: embedded,
		logger:   logger,
	}, nil
}

// Listen subscribes to the subject named by channel.
func (b *NATSBus) Listen(ctx context.Context, channel string) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, &TransportError{Op: "listen", Channel: channel, Err: ErrBusClosed}
	}
	b.mu.Unlock()

	inbox := make(chan *natsgo.Msg, 64)
	inner, err := b.conn.ChanSubscribe(channel, inbox)
	if err != nil {
		return nil, &TransportError{Op: "listen", Channel: channel, Err: err}
	}

	sub := &natsSubscription{
		channel: channel,
		inner:   inner,
		out:     make(chan Message),
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
	}
	go sub.pump(ctx, inbox)

	b.logger.Debug().Str("channel", channel).Msg("NATS listen opened")
	return sub, nil
}

// Notify publishes a payload to the subject named by channel.
func (b *NATSBus) Notify(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return &TransportError{Op: "notify", Channel: channel, Err: ErrBusClosed}
	}
	b.mu.Unlock()

	if err := b.conn.Publish(channel, payload); err != nil {
		return &TransportError{Op: "notify", Channel: channel, Err: err}
	}
	return nil
}

// Close drains the connection and stops the embedded server when one
// is running.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.conn.Drain()
	b.conn.Close()
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
	return err
}

// natsSubscription adapts one NATS subscription to the bus Message
// shape.
type natsSubscription struct {
	channel string
	inner   *natsgo.Subscription
	out     chan Message
	done    chan struct{}
	quit    chan struct{}

	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// pump owns the out channel: it translates raw NATS messages until the
// subscription is closed or the context ends.
func (s *natsSubscription) pump(ctx context.Context, inbox <-chan *natsgo.Msg) {
	defer close(s.out)
	defer close(s.done)

	for {
		select {
		case msg, ok := <-inbox:
			if !ok {
				return
			}
			select {
			case s.out <- Message{Channel: s.channel, Payload: msg.Data}:
			case <-s.quit:
				return
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		case <-s.quit:
			return
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
}

func (s *natsSubscription) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *natsSubscription) Messages() <-chan Message { return s.out }

func (s *natsSubscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *natsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.inner.Unsubscribe()
		close(s.quit)
	})
	<-s.done
	return err
}

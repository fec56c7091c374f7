// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package bus

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MemoryBus is an in-process fabric over watermill's gochannel pub/sub.
// It is the default for tests and for standalone single-binary
// deployments where no external Postgres or NATS is available.
type MemoryBus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewMemoryBus creates an in-process bus. Subscribers each get their
// own delivery channel; a published message fans out to all of them.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewMemoryBus(logger zerolog.Logger) *MemoryBus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			// Buffer smooths bursts from probes without blocking Notify.
			OutputChannelBuffer: 64,
		},
		watermill.NopLogger{},
	)

	return &MemoryBus{
		pubsub: pubsub,
		logger: logger,
	}
}

// Listen opens a subscription on one channel.
func (b *MemoryBus) Listen(ctx context.Context, channel string) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, &TransportError{Op: "listen", Channel: channel, Err: ErrBusClosed}
	}
	b.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	messages, err := b.pubsub.Subscribe(subCtx, channel)
	if err != nil {
		cancel()
		return nil, &TransportError{Op: "listen", Channel: channel, Err: err}
	}

	sub := &memorySubscription{
		channel: channel,
		out:     make(chan Message),
		cancel:  cancel,
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
	}
	go sub.pump(messages)

	b.logger.Debug().Str("channel", channel).Msg("in-memory listen opened")
	return sub, nil
}

// Notify publishes a payload to a channel. Payloads are copied; the
// caller may reuse the slice.
func (b *MemoryBus) Notify(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return &TransportError{Op: "notify", Channel: channel, Err: ErrBusClosed}
	}
	b.mu.Unlock()

	msg := message.NewMessage(uuid.NewString(), append([]byte(nil), payload...))
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(channel, msg); err != nil {
		return &TransportError{Op: "notify", Channel: channel, Err: err}
	}
	return nil
}

// Close shuts the fabric down and ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return b.pubsub.Close()
}

// memorySubscription adapts a watermill message stream to the bus
// Message shape.
type memorySubscription struct {
	channel   string
	out       chan Message
	cancel    context.CancelFunc
	done      chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
}

func (s *memorySubscription) pump(messages <-chan *message.Message) {
	defer close(s.out)
	defer close(s.done)

	for msg := range messages {
		// At-least-once in process: ack before handing off, the bus
		// keeps no redelivery state anyway.
		msg.Ack()
		select {
		case s.out <- Message{Channel: s.channel, Payload: msg.Payload}:
		case <-s.quit:
			return
		}
	}
}

func (s *memorySubscription) Messages() <-chan Message { return s.out }

// Err is always nil for the in-memory fabric; its stream only ends on
// Close or context cancellation.
func (s *memorySubscription) Err() error { return nil }

func (s *memorySubscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.quit)
	})
	<-s.done
	return nil
}

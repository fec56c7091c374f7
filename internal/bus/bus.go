// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package bus abstracts the notification fabric carrying observation
// events: PostgreSQL LISTEN/NOTIFY, NATS, or an in-process channel
// fabric for tests and single-binary deployments.
package bus

import (
	"context"
	"errors"
	"fmt"
)

// ErrBusClosed is returned by Listen and Notify after Close.
var ErrBusClosed = errors.New("bus is closed")

// Message is one notification as delivered by the fabric.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is one open listen on a channel. Messages is closed on
// Close, context cancellation or transport failure; Err distinguishes
// the failure case.
type Subscription interface {
	Messages() <-chan Message
	Err() error
	Close() error
}

// Bus is the notification fabric the router listens on and emits to.
type Bus interface {
	// Listen opens a subscription on one channel. The subscription
	// ends when ctx is cancelled or Close is called.
	Listen(ctx context.Context, channel string) (Subscription, error)
	// Notify publishes a payload to a channel.
	Notify(ctx context.Context, channel string, payload []byte) error
	// Close releases the fabric connection and ends every
	// subscription.
	Close() error
}

// TransportError marks a listen or notify failure. The router treats
// these as fatal to its current run; the supervisor restarts it.
type TransportError struct {
	Op      string
	Channel string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s on %q: %v", e.Op, e.Channel, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

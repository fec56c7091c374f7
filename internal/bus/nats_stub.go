// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

//go:build !nats

package bus

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrNATSDisabled is returned when a NATS bus is requested from a
// binary built without the nats tag.
var ErrNATSDisabled = errors.New("NATS support not compiled in (build with -tags nats)")

// NATSConfig mirrors the nats-tagged configuration so config loading
// works on every build.
type NATSConfig struct {
	URL           string
	Embedded      bool
	EmbeddedHost  string
	EmbeddedPort  int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the stock NATS tuning.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		EmbeddedHost:  "127.0.0.1",
		EmbeddedPort:  4222,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBus is unavailable without the nats build tag. The type still
// satisfies Bus so wiring code compiles unchanged.
type NATSBus struct{}

// NewNATSBus always fails on non-nats builds.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) (*NATSBus, error) {
	return nil, ErrNATSDisabled
}

func (b *NATSBus) Listen(ctx context.Context, channel string) (Subscription, error) {
	return nil, ErrNATSDisabled
}

func (b *NATSBus) Notify(ctx context.Context, channel string, payload []byte) error {
	return ErrNATSDisabled
}

func (b *NATSBus) Close() error { return nil }

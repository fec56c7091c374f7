// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Context keys for logging.
type contextKey string

const (
	// deliveryIDKey is the context key for event delivery IDs.
	deliveryIDKey contextKey = "delivery_id"

	// loggerKey is the context key for storing a logger instance.
	loggerKey contextKey = "logger"
)

// GenerateDeliveryID creates a new unique delivery ID.
// Returns the first 8 characters of a UUID for log readability; the ID only
// needs to be unique among concurrently in-flight dispatches.
func GenerateDeliveryID() string {
	return uuid.New().String()[:8]
}

// ContextWithDeliveryID returns a new context carrying the given delivery ID.
// The router attaches one per fan-out so handler logs can be correlated back
// to the triggering event.
func ContextWithDeliveryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deliveryIDKey, id)
}

// DeliveryIDFromContext retrieves the delivery ID from context.
// Returns empty string if not present.
func DeliveryIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(deliveryIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithLogger stores a logger in the context.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger stored in the context.
// Returns a no-op logger when none was stored; callers that need output must
// have been handed a logger explicitly.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		logger = decorateFromContext(ctx, logger)
		return logger
	}
	return zerolog.Nop()
}

// decorateFromContext enriches a logger with IDs carried by the context.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func decorateFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if id := DeliveryIDFromContext(ctx); id != "" {
		logger = logger.With().Str("delivery_id", id).Logger()
	}
	return logger
}

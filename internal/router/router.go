// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package router distributes observation events between the
// notification fabric and in-process subscribers. One router instance
// listens on every channel that has at least one subscriber, fans each
// event out to all of them concurrently, and publishes outward through
// Emit. Subscriber failures are isolated; transport failures end the
// run and are surfaced to the supervisor.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dbvigil/dbvigil/internal/bus"
	"github.com/dbvigil/dbvigil/internal/metrics"
	"github.com/dbvigil/dbvigil/internal/observation"
)

// Handler consumes one event from one channel. Implementations must be
// safe for concurrent calls; the router invokes them from independent
// goroutines. An error is recorded and logged but never stops sibling
// handlers or the router itself.
type Handler interface {
	// Name identifies the handler in logs and unsubscribe no-op
	// messages.
	Name() string
	// HandleEvent processes one decoded observation from a channel.
	HandleEvent(ctx context.Context, channel string, obs observation.Observation) error
}

// ErrAlreadyRunning is returned by Run when another Run loop is still
// active on this router instance.
var ErrAlreadyRunning = errors.New("router is already running")

// Config carries router tuning.
type Config struct {
	// GracePeriod bounds how long Stop and context cancellation wait
	// for in-flight dispatches before cleanup proceeds.
	GracePeriod time.Duration

	// DispatchPerSecond throttles fan-outs per channel. Zero disables
	// the throttle.
	DispatchPerSecond float64

	// DispatchBurst is the throttle burst size when the throttle is
	// enabled.
	DispatchBurst int
}

// DefaultConfig returns the stock router tuning.
func DefaultConfig() Config {
	return Config{
		GracePeriod:   5 * time.Second,
		DispatchBurst: 1,
	}
}

// Router owns the channel -> subscriber registry and the listen loop.
type Router struct {
	fabric bus.Bus
	codec  *observation.Codec
	cfg    Config
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers map[string][]Handler
	limiters    map[string]*rate.Limiter

	running  atomic.Bool
	inflight sync.WaitGroup

	runMu sync.Mutex
	stop  context.CancelFunc
	subs  []bus.Subscription
}

// New builds a router over a notification fabric. Subscribe channels
// and handlers before calling Run.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(fabric bus.Bus, cfg Config, logger zerolog.Logger) *Router {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultConfig().GracePeriod
	}
	if cfg.DispatchBurst <= 0 {
		cfg.DispatchBurst = 1
	}

	return &Router{
		fabric:      fabric,
		codec:       observation.NewCodec(),
		cfg:         cfg,
		logger:      logger,
		subscribers: make(map[string][]Handler),
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Subscribe registers a handler on a channel. Creating the channel
// entry is idempotent; the handler is appended, so in-process delivery
// order follows subscription order. Subscriptions made while the
// router is running take effect for subsequent events on channels the
// router already listens on; a brand-new channel needs a restart to
// get a transport listen.
func (r *Router) Subscribe(channel string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribers[channel] = append(r.subscribers[channel], h)
	if r.cfg.DispatchPerSecond > 0 {
		if _, ok := r.limiters[channel]; !ok {
			r.limiters[channel] = rate.NewLimiter(rate.Limit(r.cfg.DispatchPerSecond), r.cfg.DispatchBurst)
		}
	}

	r.logger.Info().
		Str("channel", channel).
		Str("handler", h.Name()).
		Int("subscribers", len(r.subscribers[channel])).
		Msg("handler subscribed")
}

// Unsubscribe removes one occurrence of a handler from a channel. A
// handler that is not subscribed is a logged no-op.
func (r *Router) Unsubscribe(channel string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handlers := r.subscribers[channel]
	for i, registered := range handlers {
		if registered == h {
			r.subscribers[channel] = append(handlers[:i:i], handlers[i+1:]...)
			if len(r.subscribers[channel]) == 0 {
				delete(r.subscribers, channel)
			}
			r.logger.Info().
				Str("channel", channel).
				Str("handler", h.Name()).
				Msg("handler unsubscribed")
			return
		}
	}

	r.logger.Warn().
		Str("channel", channel).
		Str("handler", h.Name()).
		Msg("unsubscribe of handler that was not subscribed")
}

// Run opens a transport listen for every currently subscribed channel
// and dispatches until the context is cancelled, Stop is called, or a
// subscription fails. A transport failure is fatal to this run: the
// router cleans up and returns the error so the supervisor can restart
// it. Normal shutdown returns ctx.Err or nil after Stop.
func (r *Router) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.runMu.Lock()
	r.stop = cancel
	r.subs = nil
	r.runMu.Unlock()

	channels := r.ActiveChannels()
	if len(channels) == 0 {
		r.logger.Warn().Msg("router started with no subscriptions")
	}

	// One fatal error ends the run; buffered so late readers never
	// block.
	fatal := make(chan error, len(channels)+1)
	var readers sync.WaitGroup

	for _, channel := range channels {
		sub, err := r.fabric.Listen(runCtx, channel)
		if err != nil {
			r.logger.Error().Err(err).Str("channel", channel).Msg("transport listen failed")
			r.Cleanup()
			return fmt.Errorf("listen %s: %w", channel, err)
		}

		r.runMu.Lock()
		r.subs = append(r.subs, sub)
		r.runMu.Unlock()

		readers.Add(1)
		go func(channel string, sub bus.Subscription) {
			defer readers.Done()
			for msg := range sub.Messages() {
				r.HandleEvent(runCtx, msg.Channel, msg.Payload)
			}
			if err := sub.Err(); err != nil && runCtx.Err() == nil {
				fatal <- &bus.TransportError{Op: "listen", Channel: channel, Err: err}
			}
		}(channel, sub)
	}

	metrics.SetActiveChannels(len(channels))
	r.logger.Info().Strs("channels", channels).Msg("router listening")

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case <-runCtx.Done():
		// Stop() was called.
	case err := <-fatal:
		r.logger.Error().Err(err).Msg("transport failure, ending router run")
		runErr = err
	}

	cancel()
	r.waitForInflight()
	r.Cleanup()
	readers.Wait()
	metrics.SetActiveChannels(0)

	r.logger.Info().Msg("router stopped")
	return runErr
}

// Stop requests the listen loop to end. It does not wait; Run performs
// the bounded grace wait and cleanup on its way out.
func (r *Router) Stop() {
	r.runMu.Lock()
	stop := r.stop
	r.runMu.Unlock()

	if stop != nil {
		stop()
	}
}

// Cleanup releases every transport listen. Best effort: one channel's
// failure is logged and does not block releasing the rest.
func (r *Router) Cleanup() {
	r.runMu.Lock()
	subs := r.subs
	r.subs = nil
	r.runMu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("transport listen release failed")
		}
	}
}

// waitForInflight waits up to the grace period for running dispatches.
func (r *Router) waitForInflight() {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.cfg.GracePeriod):
		r.logger.Warn().
			Dur("grace_period", r.cfg.GracePeriod).
			Msg("in-flight dispatches did not finish within the grace period")
	}
}

// ActiveChannels returns the channels with at least one subscriber, in
// sorted order.
func (r *Router) ActiveChannels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]string, 0, len(r.subscribers))
	for channel := range r.subscribers {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	return channels
}

// SubscriberCount returns how many handlers a channel has.
func (r *Router) SubscriberCount(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers[channel])
}

// Running reports whether a Run loop is active.
func (r *Router) Running() bool {
	return r.running.Load()
}

// HandleEvent decodes one transport payload and fans it out to every
// subscriber of the channel. Malformed payloads and events on channels
// without subscribers are dropped with a log entry. Handler errors are
// collected and logged; they never propagate to the transport.
func (r *Router) HandleEvent(ctx context.Context, channel string, payload []byte) {
	metrics.RecordEventReceived(channel)

	obs, err := r.codec.Decode(payload)
	if err != nil {
		metrics.RecordEventDropped(channel, metrics.DropMalformed)
		r.logger.Warn().Err(err).
			Str("channel", channel).
			Int("payload_bytes", len(payload)).
			Msg("malformed payload dropped")
		return
	}

	r.mu.RLock()
	handlers := append([]Handler(nil), r.subscribers[channel]...)
	limiter := r.limiters[channel]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		metrics.RecordEventDropped(channel, metrics.DropNoSubscribers)
		r.logger.Warn().
			Str("channel", channel).
			Str("event_type", obs.EventType()).
			Msg("no subscribers for channel, event dropped")
		return
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}

	r.dispatch(ctx, channel, obs, handlers)
}

// dispatch runs every handler in its own goroutine and joins them with
// a failure-tolerant barrier: each error is captured, siblings are
// never delayed or cancelled.
func (r *Router) dispatch(ctx context.Context, channel string, obs observation.Observation, handlers []Handler) {
	deliveryID := uuid.NewString()
	start := time.Now()

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, h := range handlers {
		wg.Add(1)
		r.inflight.Add(1)
		go func(i int, h Handler) {
			defer wg.Done()
			defer r.inflight.Done()
			errs[i] = r.invoke(ctx, channel, obs, h, deliveryID)
		}(i, h)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	metrics.RecordDispatch(channel, time.Since(start), len(handlers), failed)

	if joined := errors.Join(errs...); joined != nil {
		r.logger.Error().Err(joined).
			Str("channel", channel).
			Str("event_type", obs.EventType()).
			Str("delivery_id", deliveryID).
			Int("handlers", len(handlers)).
			Int("failed", failed).
			Msg("handler errors during dispatch")
	}
}

// invoke runs one handler, converting a panic into an error so a
// misbehaving subscriber cannot take down the router.
func (r *Router) invoke(ctx context.Context, channel string, obs observation.Observation, h Handler, deliveryID string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler %s panicked: %v", h.Name(), rec)
		}
	}()

	r.logger.Debug().
		Str("channel", channel).
		Str("handler", h.Name()).
		Str("event_type", obs.EventType()).
		Str("delivery_id", deliveryID).
		Msg("dispatching event")

	if err := h.HandleEvent(ctx, channel, obs); err != nil {
		return fmt.Errorf("handler %s: %w", h.Name(), err)
	}
	return nil
}

// Emit serializes an observation and publishes it to a channel.
// Failures are logged and returned; the caller decides whether the
// business action that produced the event needs a retry.
func (r *Router) Emit(ctx context.Context, channel string, obs observation.Observation) error {
	payload, err := r.codec.Encode(obs)
	if err != nil {
		r.logger.Error().Err(err).
			Str("channel", channel).
			Str("event_type", obs.EventType()).
			Msg("event encode failed")
		return err
	}

	err = r.fabric.Notify(ctx, channel, payload)
	metrics.RecordEmit(channel, err)
	if err != nil {
		r.logger.Error().Err(err).
			Str("channel", channel).
			Str("event_type", obs.EventType()).
			Msg("event emit failed")
		return fmt.Errorf("emit on %s: %w", channel, err)
	}

	r.logger.Debug().
		Str("channel", channel).
		Str("event_type", obs.EventType()).
		Msg("event emitted")
	return nil
}

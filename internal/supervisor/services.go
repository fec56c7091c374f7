// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/metrics"
)

// Runner is the context-driven lifecycle shape shared by the event
// router and the spool retry loop: Run blocks until the context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService wraps a Runner as a supervised service.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps a Runner under the given service name.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service. Context cancellation is a normal
// stop, not a failure; suture treats ErrDoNotRestart-free nil/ctx
// errors as clean exits during shutdown.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

// String implements fmt.Stringer for suture's logs.
func (s *RunnerService) String() string {
	return s.name
}

// HTTPServer matches *http.Server's lifecycle methods so tests can
// substitute fakes.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts http.Server's blocking ListenAndServe to suture's
// context-aware Serve:
//  1. starts ListenAndServe in a goroutine
//  2. waits for context cancellation or a server error
//  3. on shutdown, calls Shutdown with the configured timeout
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an HTTP server as a supervised service.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. http.ErrServerClosed is the
// expected result of Shutdown and is never treated as a failure.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The run context is canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture's logs.
func (h *HTTPService) String() string {
	return "ops-http-server"
}

// Janitor periodically sweeps expired verdicts out of the dedup cache
// so TTL expiry shows up in the entries gauge without waiting for
// lookups to touch the stale keys.
type Janitor struct {
	cleanup  func() int
	entries  func() int
	interval time.Duration
	logger   zerolog.Logger
}

// NewJanitor builds a cache janitor. cleanup removes expired entries
// and returns how many were dropped; entries reports the remaining
// count for the gauge.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewJanitor(interval time.Duration, cleanup func() int, entries func() int, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Janitor{
		cleanup:  cleanup,
		entries:  entries,
		interval: interval,
		logger:   logger,
	}
}

// Serve implements suture.Service.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := j.cleanup()
			remaining := j.entries()
			metrics.RecordCacheEvictions(removed, remaining)
			if removed > 0 {
				j.logger.Debug().
					Int("removed", removed).
					Int("remaining", remaining).
					Msg("expired verdicts swept")
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (j *Janitor) String() string {
	return "dedup-janitor"
}

// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package api serves the agent's ops surface: health, metrics, and
// runtime control of the router and deduplication engine. It carries
// no ingestion traffic; observations only ever arrive over the bus.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dbvigil/dbvigil/internal/dedup"
	"github.com/dbvigil/dbvigil/internal/health"
	"github.com/dbvigil/dbvigil/internal/metrics"
	"github.com/dbvigil/dbvigil/internal/spool"
)

// DedupControl is the slice of the dedup engine the ops API drives.
type DedupControl interface {
	CacheStats() dedup.CacheStats
	ClearCache()
	SetBucketInterval(minutes int) error
	BucketInterval() int
}

// RouterStatus is the slice of the event router the ops API reads.
type RouterStatus interface {
	Running() bool
	ActiveChannels() []string
	SubscriberCount(channel string) int
}

// Config tunes the ops HTTP server.
type Config struct {
	// Addr is the listen address, e.g. "0.0.0.0:9422".
	Addr string

	// Timeout bounds request handling.
	Timeout time.Duration

	// RateLimitReqs requests per RateLimitWindow per client IP. Zero
	// disables rate limiting.
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// Server is the ops API over chi.
type Server struct {
	cfg    Config
	dedup  DedupControl
	router RouterStatus
	spool  spool.Spool
	health *health.Checker
	logger zerolog.Logger
}

// NewServer wires the ops API. spool may be nil when the journal is
// disabled; its endpoint then reports 404.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewServer(cfg Config, dedupCtl DedupControl, routerStatus RouterStatus, sp spool.Spool, checker *health.Checker, logger zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		dedup:  dedupCtl,
		router: routerStatus,
		spool:  sp,
		health: checker,
		logger: logger,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)

	// Health and metrics stay outside the rate limiter so monitoring
	// never gets throttled behind control traffic.
	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
		}

		r.Get("/health", s.handleHealth)
		r.Get("/health/{component}", s.handleComponentHealth)

		r.Get("/channels", s.handleChannels)
		r.Get("/channels/{channel}/subscribers", s.handleChannelSubscribers)

		r.Get("/dedup/stats", s.handleDedupStats)
		r.Delete("/dedup/cache", s.handleClearCache)
		r.Put("/dedup/interval", s.handleSetBucketInterval)

		r.Get("/spool/stats", s.handleSpoolStats)
	})

	return r
}

// HTTPServer builds a ready-to-run http.Server for the supervisor.
func (s *Server) HTTPServer() *http.Server {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
	}
}

// requestMetrics records per-route Prometheus counters and latencies.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordAPIRequest(r.Method, endpoint, strconv.Itoa(ww.Status()), time.Since(start))
	})
}

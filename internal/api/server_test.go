// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dbvigil/dbvigil/internal/dedup"
	"github.com/dbvigil/dbvigil/internal/health"
	"github.com/dbvigil/dbvigil/internal/logging"
)

type fakeDedup struct {
	minutes  int
	cleared  bool
	setErr   error
	lastStat dedup.CacheStats
}

func (f *fakeDedup) CacheStats() dedup.CacheStats { return f.lastStat }
func (f *fakeDedup) ClearCache()                  { f.cleared = true }
func (f *fakeDedup) BucketInterval() int          { return f.minutes }
func (f *fakeDedup) SetBucketInterval(minutes int) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.minutes = minutes
	return nil
}

type fakeRouterStatus struct {
	running  bool
	channels []string
	subs     map[string]int
}

func (f *fakeRouterStatus) Running() bool            { return f.running }
func (f *fakeRouterStatus) ActiveChannels() []string { return f.channels }
func (f *fakeRouterStatus) SubscriberCount(channel string) int {
	return f.subs[channel]
}

func newTestServer(t *testing.T, d *fakeDedup, healthy bool) *Server {
	t.Helper()
	checker := health.NewChecker(health.DefaultConfig())
	checker.Register("store", health.CheckFunc(func(context.Context) health.ComponentHealth {
		if healthy {
			return health.ComponentHealth{Healthy: true}
		}
		return health.ComponentHealth{Healthy: false, Error: "connection refused"}
	}))

	routerStatus := &fakeRouterStatus{
		running:  true,
		channels: []string{"monitoring_events", "performance_events"},
		subs:     map[string]int{"monitoring_events": 1},
	}

	cfg := Config{Addr: "127.0.0.1:0", Timeout: 5 * time.Second}
	return NewServer(cfg, d, routerStatus, nil, checker, logging.Nop())
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	srv := newTestServer(t, &fakeDedup{minutes: 5}, true)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
}

func TestReadinessReflectsHealth(t *testing.T) {
	ready := newTestServer(t, &fakeDedup{minutes: 5}, true)
	if rec := doRequest(t, ready.Handler(), http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /readyz healthy = %d, want 200", rec.Code)
	}

	unready := newTestServer(t, &fakeDedup{minutes: 5}, false)
	rec := doRequest(t, unready.Handler(), http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz unhealthy = %d, want 503", rec.Code)
	}
	var overall health.OverallHealth
	if err := json.Unmarshal(rec.Body.Bytes(), &overall); err != nil {
		t.Fatalf("decode readiness body: %v", err)
	}
	if overall.Status != health.StatusUnhealthy {
		t.Errorf("readiness status = %q, want unhealthy", overall.Status)
	}
}

func TestComponentHealthNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeDedup{minutes: 5}, true)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/health/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /v1/health/missing = %d, want 404", rec.Code)
	}
}

func TestChannels(t *testing.T) {
	srv := newTestServer(t, &fakeDedup{minutes: 5}, true)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/channels", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/channels = %d, want 200", rec.Code)
	}
	var body struct {
		Running  bool     `json:"running"`
		Channels []string `json:"channels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode channels body: %v", err)
	}
	if !body.Running || len(body.Channels) != 2 {
		t.Errorf("channels body = %+v", body)
	}
}

func TestChannelSubscribers(t *testing.T) {
	srv := newTestServer(t, &fakeDedup{minutes: 5}, true)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/channels/monitoring_events/subscribers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Channel     string `json:"channel"`
		Subscribers int    `json:"subscribers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Channel != "monitoring_events" || body.Subscribers != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestDedupStats(t *testing.T) {
	d := &fakeDedup{minutes: 5, lastStat: dedup.CacheStats{Entries: 42, Capacity: 100}}
	srv := newTestServer(t, d, true)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/dedup/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/dedup/stats = %d, want 200", rec.Code)
	}
	var body struct {
		Cache         dedup.CacheStats `json:"cache"`
		BucketMinutes int              `json:"bucket_minutes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Cache.Entries != 42 || body.BucketMinutes != 5 {
		t.Errorf("body = %+v", body)
	}
}

func TestClearCache(t *testing.T) {
	d := &fakeDedup{minutes: 5}
	srv := newTestServer(t, d, true)
	rec := doRequest(t, srv.Handler(), http.MethodDelete, "/v1/dedup/cache", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE /v1/dedup/cache = %d, want 204", rec.Code)
	}
	if !d.cleared {
		t.Error("ClearCache was not called")
	}
}

func TestSetBucketInterval(t *testing.T) {
	d := &fakeDedup{minutes: 5}
	srv := newTestServer(t, d, true)
	rec := doRequest(t, srv.Handler(), http.MethodPut, "/v1/dedup/interval", `{"minutes": 10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /v1/dedup/interval = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if d.minutes != 10 {
		t.Errorf("bucket minutes = %d, want 10", d.minutes)
	}
}

func TestSetBucketIntervalRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{minutes: ten`},
		{"out of range high", `{"minutes": 61}`},
		{"out of range low", `{"minutes": 0}`},
		{"missing field", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDedup{minutes: 5}
			srv := newTestServer(t, d, true)
			rec := doRequest(t, srv.Handler(), http.MethodPut, "/v1/dedup/interval", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			if d.minutes != 5 {
				t.Errorf("bucket minutes changed to %d on invalid input", d.minutes)
			}
		})
	}
}

func TestSetBucketIntervalEngineRejection(t *testing.T) {
	d := &fakeDedup{minutes: 5, setErr: dedup.ErrInvalidBucketInterval}
	srv := newTestServer(t, d, true)
	rec := doRequest(t, srv.Handler(), http.MethodPut, "/v1/dedup/interval", `{"minutes": 10}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSpoolStatsDisabled(t *testing.T) {
	srv := newTestServer(t, &fakeDedup{minutes: 5}, true)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/spool/stats", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /v1/spool/stats with no spool = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeDedup{minutes: 5}, true)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "router_active_channels") {
		t.Error("metrics output missing agent collectors")
	}
}

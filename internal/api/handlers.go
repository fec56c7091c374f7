// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/dbvigil/dbvigil/internal/dedup"
	"github.com/dbvigil/dbvigil/internal/validation"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("encode response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// handleLiveness reports process liveness only. It must stay cheap:
// orchestrators poll it through outages the agent is riding out.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness runs the registered component checks and reports 503
// while any of them fails.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	overall := s.health.CheckAll(r.Context())
	status := http.StatusOK
	if !overall.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, overall)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.health.CheckAll(r.Context()))
}

func (s *Server) handleComponentHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "component")
	result := s.health.CheckComponent(r.Context(), name)
	status := http.StatusOK
	if result.Error == "component not found" {
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, result)
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	channels := s.router.ActiveChannels()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":  s.router.Running(),
		"channels": channels,
	})
}

func (s *Server) handleChannelSubscribers(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"channel":     channel,
		"subscribers": s.router.SubscriberCount(channel),
	})
}

func (s *Server) handleDedupStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache":          s.dedup.CacheStats(),
		"bucket_minutes": s.dedup.BucketInterval(),
	})
}

// handleClearCache drops every cached verdict. The engine falls back
// to oracle probes until the cache rewarms; duplicates are still
// caught, just slower.
func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	s.dedup.ClearCache()
	s.logger.Info().Msg("verdict cache cleared via ops API")
	w.WriteHeader(http.StatusNoContent)
}

// bucketIntervalRequest is the PUT /v1/dedup/interval body.
type bucketIntervalRequest struct {
	Minutes int `json:"minutes" validate:"required,min=1,max=60"`
}

func (s *Server) handleSetBucketInterval(w http.ResponseWriter, r *http.Request) {
	var req bucketIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "MALFORMED_BODY", "request body must be JSON")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		})
		return
	}

	if err := s.dedup.SetBucketInterval(req.Minutes); err != nil {
		if errors.Is(err, dedup.ErrInvalidBucketInterval) {
			s.writeError(w, http.StatusBadRequest, "INVALID_INTERVAL", err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	s.logger.Info().Int("minutes", req.Minutes).Msg("bucket interval changed via ops API")
	s.writeJSON(w, http.StatusOK, map[string]int{"bucket_minutes": req.Minutes})
}

func (s *Server) handleSpoolStats(w http.ResponseWriter, _ *http.Request) {
	if s.spool == nil {
		s.writeError(w, http.StatusNotFound, "SPOOL_DISABLED", "spool is not enabled")
		return
	}
	s.writeJSON(w, http.StatusOK, s.spool.Stats())
}

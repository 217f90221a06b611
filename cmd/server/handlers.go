package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Ayuboiii/AILAB/internal/api"
	"github.com/Ayuboiii/AILAB/internal/bandit"
	"github.com/Ayuboiii/AILAB/internal/experiment"
	"github.com/Ayuboiii/AILAB/internal/metrics"
)

type Server struct {
	manager      *experiment.Manager
	orchestrator *bandit.Orchestrator
	metrics      *metrics.Metrics
	limiter      *rate.Limiter
	logger       *slog.Logger
	metricsAuth  struct {
		enabled  bool
		user     string
		password string
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/experiments", s.handleSubmitWork)
	mux.HandleFunc("GET /v1/experiments", s.handleListWork)
	mux.HandleFunc("GET /v1/experiments/{id}", s.handleGetWork)
	mux.HandleFunc("POST /v1/bandits", s.handleCreateBandit)
	mux.HandleFunc("POST /v1/bandits/{id}/pick", s.handlePick)
	mux.HandleFunc("POST /v1/bandits/{id}/reward", s.handleReward)
	mux.HandleFunc("GET /v1/bandits/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /v1/bandits/{id}/explanations/latest", s.handleLatestExplanation)
	mux.Handle("GET /metrics", s.metricsHandler())
	mux.HandleFunc("GET /health", handleHealth)
	return mux
}

func (s *Server) handleSubmitWork(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w) {
		return
	}

	var req api.SubmitWorkRequest
	if !s.decode(w, r, &req) {
		return
	}

	item, err := s.manager.Submit(r.Context(), experiment.Kind(req.Kind), req.Input)
	if err != nil {
		switch {
		case errors.Is(err, experiment.ErrBusy):
			w.Header().Set("Retry-After", "10")
			writeError(w, http.StatusTooManyRequests, "worker queue is full, retry later")
		case errors.Is(err, experiment.ErrUnknownKind), errors.Is(err, experiment.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.internalError(w, "submit work item", err)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, api.SubmitWorkResponse{ID: item.ID, Status: string(item.Status)})
}

func (s *Server) handleListWork(w http.ResponseWriter, r *http.Request) {
	items, err := s.manager.List(r.Context())
	if err != nil {
		s.internalError(w, "list work items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"experiments": items,
		"count":       len(items),
	})
}

func (s *Server) handleGetWork(w http.ResponseWriter, r *http.Request) {
	item, err := s.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, experiment.ErrNotFound) {
			writeError(w, http.StatusNotFound, "work item not found")
			return
		}
		s.internalError(w, "get work item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateBandit(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w) {
		return
	}

	var req api.CreateBanditRequest
	if !s.decode(w, r, &req) {
		return
	}

	exp, arms, err := s.orchestrator.CreateExperiment(r.Context(), req.Name, req.ArmLabels, req.NumArms)
	if err != nil {
		if errors.Is(err, bandit.ErrInvalidExperiment) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, "create bandit experiment", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         exp.ID,
		"name":       exp.Name,
		"created_at": exp.CreatedAt,
		"arms":       arms,
	})
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w) {
		return
	}

	var req api.PickRequest
	if !s.decode(w, r, &req) {
		return
	}

	policy, err := bandit.ParsePolicy(req.Policy, req.Epsilon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.orchestrator.Pick(r.Context(), r.PathValue("id"), policy)
	if err != nil {
		switch {
		case errors.Is(err, bandit.ErrExperimentNotFound):
			writeError(w, http.StatusNotFound, "experiment not found")
		case errors.Is(err, bandit.ErrNoArmsAvailable):
			writeError(w, http.StatusBadRequest, "experiment has no arms")
		default:
			s.internalError(w, "pick arm", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, api.PickResponse{ArmID: result.ArmID, Policy: result.Policy})
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w) {
		return
	}

	var req api.RewardRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Reward == nil {
		writeError(w, http.StatusBadRequest, "reward value is required")
		return
	}

	err := s.orchestrator.LogReward(r.Context(), r.PathValue("id"), req.ArmID, *req.Reward)
	if err != nil {
		switch {
		case errors.Is(err, bandit.ErrExperimentNotFound):
			writeError(w, http.StatusNotFound, "experiment not found")
		case errors.Is(err, bandit.ErrInvalidEvent):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.internalError(w, "log reward", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	experimentID := r.PathValue("id")
	stats, err := s.orchestrator.Ledger().StatsFor(r.Context(), experimentID)
	if err != nil {
		if errors.Is(err, bandit.ErrExperimentNotFound) {
			writeError(w, http.StatusNotFound, "experiment not found")
			return
		}
		s.internalError(w, "compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"experiment_id": experimentID,
		"arms":          stats,
	})
}

func (s *Server) handleLatestExplanation(w http.ResponseWriter, r *http.Request) {
	ex, err := s.orchestrator.LatestExplanation(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, bandit.ErrNoExplanation):
			writeError(w, http.StatusNotFound, "no explanation recorded for experiment")
		case errors.Is(err, bandit.ErrExperimentNotFound):
			writeError(w, http.StatusNotFound, "experiment not found")
		default:
			s.internalError(w, "fetch explanation", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) metricsHandler() http.Handler {
	handler := promhttp.Handler()
	if !s.metricsAuth.enabled {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.metricsAuth.user || pass != s.metricsAuth.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// allow applies the rate limiter to mutating endpoints.
func (s *Server) allow(w http.ResponseWriter) bool {
	if s.limiter.Allow() {
		return true
	}
	w.Header().Set("Retry-After", "10")
	writeError(w, http.StatusTooManyRequests, "too many requests")
	return false
}

// decode reads a bounded JSON body into dst, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}

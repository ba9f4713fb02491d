// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/examintel/internal/adapters/mq/queue"
	"github.com/okian/examintel/internal/adapters/repository"
	"github.com/okian/examintel/internal/domain/dedupe"
	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/logger"
)

const maxBodyBytes = 1 << 20

// PlanDependencies generate and read stored plans.
type PlanDependencies interface {
	// GeneratePlan builds and stores a plan for a validated assessment.
	GeneratePlan(ctx context.Context, a *model.Assessment) (*model.Plan, error)
	Plan(ctx context.Context, planID string) (*model.Plan, error)
	LatestPlan(ctx context.Context, assessmentID string) (*model.Plan, error)
}

// JobDependencies accept asynchronous plan jobs.
type JobDependencies interface {
	dedupe.Deduper

	// Enqueue hands a job to the worker pool. It fails fast when the queue is full.
	Enqueue(ctx context.Context, job queue.Job) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PlanDependencies
	JobDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	plansHandler  *PlansHandler
	jobsHandler   *JobsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		plansHandler:  NewPlansHandler(deps),
		jobsHandler:   NewJobsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /plans", MetricsMiddleware(s.plansHandler.HandleCreatePlan, "plans_create"))
	mux.HandleFunc("POST /plans/jobs", MetricsMiddleware(s.jobsHandler.HandleSubmitJob, "plans_jobs"))
	mux.HandleFunc("GET /plans/{id}", MetricsMiddleware(s.plansHandler.HandleGetPlan, "plans_get"))
	mux.HandleFunc("GET /assessments/{id}/plan", MetricsMiddleware(s.plansHandler.HandleLatestPlan, "assessment_plan"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeErrorFor picks the status from the error kind. Unknown errors are
// logged and reported as internal errors.
func writeErrorFor(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrNoSubjects):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", err)
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, queue.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		log.Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

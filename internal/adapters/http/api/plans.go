package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/examintel/internal/domain/gap"
	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/logger"
)

// planRequest is an assessment, optionally given as raw survey answers.
// Answers, when present, replace Subjects, OverallConfidence and WeakAreas.
type planRequest struct {
	model.Assessment
	Answers []gap.Answer `json:"answers,omitempty"`
}

// assessment builds the validated assessment. A missing id is generated.
func (p *planRequest) assessment() (*model.Assessment, error) {
	a := p.Assessment
	if len(p.Answers) > 0 {
		m, err := gap.BuildModel(p.Answers)
		if err != nil {
			return nil, err
		}
		m.Apply(&a)
	}
	a.ID = strings.TrimSpace(a.ID)
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// readAssessment decodes and validates the request body.
func readAssessment(w http.ResponseWriter, r *http.Request, op string) (*model.Assessment, error) {
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, WrapKind(op, ErrBadRequest, err)
	}
	a, err := req.assessment()
	if err != nil {
		return nil, WrapKind(op, ErrBadRequest, err)
	}
	return a, nil
}

// PlansHandler serves synchronous plan generation and plan reads.
type PlansHandler struct {
	deps   PlanDependencies
	logger logger.Logger
}

// NewPlansHandler creates a new plans handler.
func NewPlansHandler(deps PlanDependencies) *PlansHandler {
	return &PlansHandler{deps: deps, logger: logger.Get().Named("api.plans")}
}

// HandleCreatePlan handles POST /plans requests.
func (h *PlansHandler) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_plan"
	ctx := r.Context()

	a, err := readAssessment(w, r, op)
	if err != nil {
		writeErrorFor(ctx, w, h.logger, err)
		return
	}
	plan, err := h.deps.GeneratePlan(ctx, a)
	if err != nil {
		writeErrorFor(ctx, w, h.logger, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/plans/"+plan.ID)
	writeJSON(w, http.StatusCreated, plan)
}

// HandleGetPlan handles GET /plans/{id} requests.
func (h *PlansHandler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_plan"
	ctx := r.Context()

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeErrorFor(ctx, w, h.logger, NewKind(op, ErrBadRequest))
		return
	}
	plan, err := h.deps.Plan(ctx, id)
	if err != nil {
		writeErrorFor(ctx, w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// HandleLatestPlan handles GET /assessments/{id}/plan requests.
func (h *PlansHandler) HandleLatestPlan(w http.ResponseWriter, r *http.Request) {
	const op = "api.latest_plan"
	ctx := r.Context()

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeErrorFor(ctx, w, h.logger, NewKind(op, ErrBadRequest))
		return
	}
	plan, err := h.deps.LatestPlan(ctx, id)
	if err != nil {
		writeErrorFor(ctx, w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// ParseAssessment decodes a request body outside HTTP, for example a file
// given to the CLI. It applies the same rules as POST /plans.
func ParseAssessment(data []byte) (*model.Assessment, error) {
	var req planRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}
	return req.assessment()
}

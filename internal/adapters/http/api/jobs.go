package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okian/examintel/internal/adapters/mq/queue"
	"github.com/okian/examintel/pkg/logger"
)

type jobResponse struct {
	Status       string `json:"status"`
	JobID        string `json:"job_id"`
	AssessmentID string `json:"assessment_id"`
	PlanURL      string `json:"plan_url"`
}

// JobsHandler accepts asynchronous plan jobs.
type JobsHandler struct {
	deps   JobDependencies
	now    func() time.Time
	logger logger.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps JobDependencies) *JobsHandler {
	return &JobsHandler{deps: deps, now: time.Now, logger: logger.Get().Named("api.jobs")}
}

// HandleSubmitJob handles POST /plans/jobs requests.
func (h *JobsHandler) HandleSubmitJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_job"
	ctx := r.Context()

	a, err := readAssessment(w, r, op)
	if err != nil {
		writeErrorFor(ctx, w, h.logger, err)
		return
	}

	// One job per assessment at a time; the worker releases the id.
	if h.deps.SeenAndRecord(ctx, a.ID) {
		writeErrorFor(ctx, w, h.logger, NewKind(op, ErrDuplicate))
		return
	}

	job := queue.Job{ID: uuid.NewString(), Assessment: *a, EnqueuedAt: h.now()}
	if err := h.deps.Enqueue(ctx, job); err != nil {
		h.deps.Unrecord(ctx, a.ID)
		writeErrorFor(ctx, w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{
		Status:       "accepted",
		JobID:        job.ID,
		AssessmentID: a.ID,
		PlanURL:      "/assessments/" + a.ID + "/plan",
	})
}

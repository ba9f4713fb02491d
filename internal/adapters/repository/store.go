// Package repository stores generated plans.
package repository

import (
	"context"

	"github.com/okian/examintel/internal/domain/model"
)

// PlanStore persists plans keyed by id and indexed by assessment.
type PlanStore interface {
	// Save stores plan and returns its id. An empty plan id is assigned.
	Save(ctx context.Context, plan *model.Plan) (string, error)

	// Get returns the plan with id or ErrNotFound.
	Get(ctx context.Context, planID string) (*model.Plan, error)

	// LatestForAssessment returns the most recently generated plan for an
	// assessment or ErrNotFound.
	LatestForAssessment(ctx context.Context, assessmentID string) (*model.Plan, error)

	// Count returns the number of stored plans.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

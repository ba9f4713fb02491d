package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver

	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/metrics"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS plans (
	id            TEXT PRIMARY KEY,
	assessment_id TEXT NOT NULL,
	generated_at  TIMESTAMPTZ NOT NULL,
	body          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS plans_assessment_generated_idx
	ON plans (assessment_id, generated_at DESC);
`

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func rebind(query string) string {
	n := 1
	out := strings.Builder{}
	for _, ch := range query {
		if ch == '?' {
			out.WriteString(fmt.Sprintf("$%d", n))
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

// PostgresStore keeps plans as JSONB rows.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens dsn, pings it and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Save upserts plan by id.
func (s *PostgresStore) Save(ctx context.Context, plan *model.Plan) (id string, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("save", time.Since(start), err) }()

	if plan == nil {
		return "", fmt.Errorf("save nil plan: %w", ErrInvalidPlan)
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("encode plan %s: %w", plan.ID, err)
	}
	_, err = s.db.ExecContext(ctx, rebind(`
INSERT INTO plans (id, assessment_id, generated_at, body)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE
SET assessment_id = EXCLUDED.assessment_id,
    generated_at  = EXCLUDED.generated_at,
    body          = EXCLUDED.body`),
		plan.ID, plan.AssessmentID, plan.GeneratedAt, string(body))
	if err != nil {
		return "", fmt.Errorf("insert plan %s: %w", plan.ID, err)
	}
	return plan.ID, nil
}

// Get returns the plan with id.
func (s *PostgresStore) Get(ctx context.Context, planID string) (plan *model.Plan, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("get", time.Since(start), err) }()

	return s.queryOne(ctx, `SELECT body FROM plans WHERE id = ?`, planID)
}

// LatestForAssessment returns the newest plan for assessmentID.
func (s *PostgresStore) LatestForAssessment(ctx context.Context, assessmentID string) (plan *model.Plan, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("latest", time.Since(start), err) }()

	return s.queryOne(ctx, `
SELECT body FROM plans
WHERE assessment_id = ?
ORDER BY generated_at DESC
LIMIT 1`, assessmentID)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*model.Plan, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, rebind(query), args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query plan: %w", err)
	}
	return decodePlan(body)
}

// Count returns the number of stored plans.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count plans: %w", err)
	}
	metrics.UpdateStoreRecords(n)
	return n, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Package planner assembles study plans from an assessment and retrieval signal.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/examintel/internal/domain/aggregate"
	"github.com/okian/examintel/internal/domain/gap"
	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/internal/domain/ranking"
	"github.com/okian/examintel/internal/domain/recommend"
	"github.com/okian/examintel/internal/domain/schedule"
	"github.com/okian/examintel/pkg/logger"
	"github.com/okian/examintel/pkg/metrics"
)

// Default planner configuration constants.
const (
	defaultTopK        = 10
	defaultTimeout     = 8 * time.Second
	defaultConcurrency = 8
)

// Retriever returns past-paper hits for a subject query.
type Retriever interface {
	Retrieve(ctx context.Context, subject, query string, topK int) ([]model.RetrievalHit, error)
}

// Planner orchestrates aggregation, gap resolution, ranking, scheduling and
// recommendations. It holds no per-request state.
type Planner struct {
	retriever   Retriever
	resolver    *gap.Resolver
	builder     *schedule.Builder
	maxTopics   int
	topK        int
	timeout     time.Duration
	concurrency int
	now         func() time.Time
	newID       func() string
	logger      logger.Logger
}

// New creates a planner with configuration options.
func New(opts ...Option) *Planner {
	p := &Planner{
		resolver:    gap.NewResolver(),
		builder:     schedule.New(),
		maxTopics:   ranking.DefaultMaxTopics,
		topK:        defaultTopK,
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      logger.Get().Named("planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// QueryFor builds the retrieval query for a subject.
func QueryFor(s model.SubjectAssessment) string {
	if weak := s.WeakTopics(); len(weak) > 0 {
		return fmt.Sprintf("weak topics in %s: %s", s.Name, strings.Join(weak, ", "))
	}
	return "common exam questions for " + s.Name
}

type subjectResult struct {
	topics   []*model.PrioritizedTopic
	degraded bool
	err      error
}

// Generate builds a plan. Only ErrNoSubjects and ErrInvalidInput are fatal;
// retrieval failures degrade the affected subject to assessment-only data.
func (p *Planner) Generate(ctx context.Context, a *model.Assessment) (*model.Plan, error) {
	start := time.Now()
	if a == nil {
		return nil, p.fail(ctx, fmt.Errorf("nil assessment: %w", model.ErrInvalidInput))
	}
	if err := a.Validate(); err != nil {
		return nil, p.fail(ctx, err)
	}

	results := make([]subjectResult, len(a.Subjects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range a.Subjects {
		g.Go(func() error {
			results[i] = p.resolveSubject(gctx, a, a.Subjects[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	groups := make([][]*model.PrioritizedTopic, len(results))
	var degraded []string
	for i, r := range results {
		if r.err != nil {
			return nil, p.fail(ctx, r.err)
		}
		groups[i] = r.topics
		if r.degraded {
			degraded = append(degraded, a.Subjects[i].Name)
		}
	}

	ranked := ranking.Rank(groups, p.maxTopics)
	days, err := p.builder.Build(ranked, a.TotalHours, a.Days)
	if err != nil {
		return nil, p.fail(ctx, err)
	}

	plan := &model.Plan{
		ID:           p.newID(),
		AssessmentID: a.ID,
		GeneratedAt:  p.now().UTC(),
		Summary: model.Summary{
			TotalTopics:       len(ranked),
			TotalHours:        a.TotalHours,
			SubjectCount:      len(a.Subjects),
			OverallConfidence: a.OverallConfidence,
			WeakAreas:         a.WeakAreas,
			DegradedSubjects:  degraded,
			StressLevel:       a.StressLevel,
			SyllabusCoverage:  a.SyllabusCoverage,
		},
		Topics:          ranked,
		Schedule:        days,
		Recommendations: recommend.Generate(a.OverallConfidence, ranked),
	}

	var scheduled float64
	for _, d := range days {
		scheduled += d.TotalHours
	}
	metrics.RecordPlanGenerated(time.Since(start), len(ranked), scheduled)
	for _, r := range plan.Recommendations {
		metrics.RecordRecommendation(r.Kind)
	}
	p.logger.Info(ctx, "plan generated",
		logger.String("assessment_id", a.ID),
		logger.String("plan_id", plan.ID),
		logger.Int("topics", len(ranked)),
		logger.Int("days", len(days)),
		logger.Strings("degraded_subjects", degraded),
		logger.Duration("elapsed", time.Since(start)),
	)
	return plan, nil
}

// resolveSubject never fails the plan; retrieval problems mark the subject as
// degraded and take the fallback path.
func (p *Planner) resolveSubject(ctx context.Context, a *model.Assessment, s model.SubjectAssessment) subjectResult {
	hits, err := p.retrieve(ctx, s)
	if err != nil {
		metrics.RecordSubjectDegraded()
		metrics.RecordRetrievalFallback()
		p.logger.Warn(ctx, "retrieval failed, using assessment only",
			logger.String("subject", s.Name),
			logger.Error(err),
		)
		return subjectResult{topics: gap.Fallback(s), degraded: true}
	}

	stats := aggregate.Aggregate(hits)
	if stats.Len() == 0 {
		metrics.RecordSubjectDegraded()
		metrics.RecordRetrievalFallback()
		p.logger.Debug(ctx, "no retrieval signal, using assessment only", logger.String("subject", s.Name))
		return subjectResult{topics: gap.Fallback(s), degraded: true}
	}

	topics, err := p.resolver.Resolve(a, s, stats)
	if err != nil {
		return subjectResult{err: err}
	}
	return subjectResult{topics: topics}
}

func (p *Planner) retrieve(ctx context.Context, s model.SubjectAssessment) ([]model.RetrievalHit, error) {
	if p.retriever == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.retriever.Retrieve(ctx, s.Name, QueryFor(s), p.topK)
}

func (p *Planner) fail(ctx context.Context, err error) error {
	reason := "invalid_input"
	if errors.Is(err, model.ErrNoSubjects) {
		reason = "no_subjects"
	}
	metrics.RecordPlanFailed(reason)
	p.logger.Warn(ctx, "plan generation rejected", logger.Error(err))
	return err
}

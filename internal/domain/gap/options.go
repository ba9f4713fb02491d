package gap

import "github.com/okian/examintel/internal/domain/scoring"

// StressSource selects where the stress factor comes from.
type StressSource string

// CoverageSource selects where the coverage term comes from.
type CoverageSource string

const (
	// StressFromConfidence buckets the topic confidence into 3, 4 or 5.
	StressFromConfidence StressSource = "confidence"
	// StressFromAssessment uses Assessment.StressLevel when it is positive.
	StressFromAssessment StressSource = "assessment"

	// CoverageNone scores every topic as uncovered.
	CoverageNone CoverageSource = "none"
	// CoverageFromAssessment uses Assessment.SyllabusCoverage.
	CoverageFromAssessment CoverageSource = "assessment"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithScorer sets the scorer used on the hits path.
func WithScorer(s *scoring.Scorer) Option {
	return func(r *Resolver) {
		if s != nil {
			r.scorer = s
		}
	}
}

// WithStressSource selects the stress factor input. Unknown values are ignored.
func WithStressSource(src string) Option {
	return func(r *Resolver) {
		switch StressSource(src) {
		case StressFromConfidence, StressFromAssessment:
			r.stress = StressSource(src)
		}
	}
}

// WithCoverageSource selects the coverage input. Unknown values are ignored.
func WithCoverageSource(src string) Option {
	return func(r *Resolver) {
		switch CoverageSource(src) {
		case CoverageNone, CoverageFromAssessment:
			r.coverage = CoverageSource(src)
		}
	}
}

// Package gap turns self-reported confidence and aggregated retrieval signal
// into prioritized topics.
package gap

import (
	"fmt"
	"math"

	"github.com/okian/examintel/internal/domain/aggregate"
	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/internal/domain/scoring"
)

// Defaults for topics the student did not rate.
const (
	DefaultGap        = 3.0
	DefaultConfidence = 2.5

	fallbackAvgValue   = 5.0
	fallbackPriorityX  = 10.0
	fallbackHoursX     = 2.0
	valueNormalization = 5.0
)

// Stress buckets keyed by confidence.
const (
	stressHigh   = 5.0
	stressMedium = 4.0
	stressLow    = 3.0
)

const noHistoryTip = "No past-year questions found for this topic; work through the syllabus and textbook exercises."

// Resolver merges gap entries with topic statistics.
type Resolver struct {
	scorer   *scoring.Scorer
	stress   StressSource
	coverage CoverageSource
}

// NewResolver creates a resolver with configuration options.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		scorer:   scoring.New(),
		stress:   StressFromConfidence,
		coverage: CoverageNone,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StressFactor buckets confidence: <2 → 5, <3 → 4, else 3.
func StressFactor(confidence float64) float64 {
	switch {
	case confidence < 2:
		return stressHigh
	case confidence < 3:
		return stressMedium
	default:
		return stressLow
	}
}

// Resolve produces the prioritized topics of one subject. Empty stats take the
// fallback path.
func (r *Resolver) Resolve(a *model.Assessment, subject model.SubjectAssessment, stats *aggregate.Stats) ([]*model.PrioritizedTopic, error) {
	if stats == nil || stats.Len() == 0 {
		return Fallback(subject), nil
	}

	entries := make(map[string]model.GapEntry, len(subject.Topics))
	for _, e := range subject.Topics {
		if _, ok := entries[e.Topic]; !ok {
			entries[e.Topic] = e
		}
	}

	out := make([]*model.PrioritizedTopic, 0, stats.Len())
	for _, st := range stats.Topics() {
		g, c := DefaultGap, DefaultConfidence
		if e, ok := entries[st.Topic]; ok {
			g, c = e.GapScore, e.Confidence
		}
		stress := r.stressFor(a, c)

		priority, err := r.scorer.Score(scoring.Input{
			Frequency:        float64(st.Frequency),
			AvgValue:         st.AvgValue,
			UnderstandingGap: g,
			StressFactor:     stress,
			Coverage:         r.coverageFor(a),
		})
		if err != nil {
			return nil, fmt.Errorf("score %s/%s: %w", subject.Name, st.Topic, err)
		}

		out = append(out, &model.PrioritizedTopic{
			Subject:          subject.Name,
			Topic:            st.Topic,
			Priority:         priority,
			Frequency:        st.Frequency,
			AvgValue:         st.AvgValue,
			UnderstandingGap: g,
			Confidence:       c,
			StressFactor:     stress,
			EstimatedHours:   math.Ceil((st.AvgValue / valueNormalization) * g),
			Examples:         firstExamples(st.Examples),
			Tips:             tipsFor(st, c),
		})
	}
	return out, nil
}

// Fallback builds assessment-only topics for a subject without retrieval
// signal. A subject with no rated topics yields one topic named after it.
func Fallback(subject model.SubjectAssessment) []*model.PrioritizedTopic {
	entries := subject.Topics
	if len(entries) == 0 {
		entries = []model.GapEntry{{
			Subject:    subject.Name,
			Topic:      subject.Name,
			GapScore:   DefaultGap,
			Confidence: DefaultConfidence,
		}}
	}
	out := make([]*model.PrioritizedTopic, 0, len(entries))
	for _, e := range entries {
		out = append(out, &model.PrioritizedTopic{
			Subject:          subject.Name,
			Topic:            e.Topic,
			Priority:         e.GapScore * fallbackPriorityX,
			Frequency:        1,
			AvgValue:         fallbackAvgValue,
			UnderstandingGap: e.GapScore,
			Confidence:       e.Confidence,
			StressFactor:     StressFactor(e.Confidence),
			EstimatedHours:   math.Ceil(e.GapScore * fallbackHoursX),
			Tips:             []string{noHistoryTip},
			Fallback:         true,
		})
	}
	return out
}

func (r *Resolver) stressFor(a *model.Assessment, confidence float64) float64 {
	if r.stress == StressFromAssessment && a != nil && a.StressLevel > 0 {
		return a.StressLevel
	}
	return StressFactor(confidence)
}

func (r *Resolver) coverageFor(a *model.Assessment) float64 {
	if r.coverage == CoverageFromAssessment && a != nil {
		return a.SyllabusCoverage
	}
	return 0
}

func firstExamples(in []model.Example) []model.Example {
	n := len(in)
	if n > model.MaxExamples {
		n = model.MaxExamples
	}
	if n == 0 {
		return nil
	}
	out := make([]model.Example, n)
	copy(out, in[:n])
	return out
}

func tipsFor(st *model.TopicStat, confidence float64) []string {
	var tips []string
	if st.YearCount > 1 {
		tips = append(tips, fmt.Sprintf("Asked in %d different years; treat it as a recurring question.", st.YearCount))
	}
	if st.AvgValue >= model.MarksHard {
		tips = append(tips, "Usually carries long-answer marks; practise full written solutions.")
	}
	if confidence < 2 {
		tips = append(tips, "Rebuild the fundamentals before attempting past papers.")
	}
	return tips
}

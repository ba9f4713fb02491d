package model

import (
	"fmt"
	"math"
	"strings"
)

// MaxConfidence is the top of the self-rating scale. Gap and confidence
// share the range 0..MaxConfidence.
const MaxConfidence = 5.0

// WeakGapThreshold marks a gap entry as a weak area.
const WeakGapThreshold = 3.0

// GapEntry is the self-reported gap for one (subject, topic) pair.
type GapEntry struct {
	Subject       string  `json:"subject"`
	Topic         string  `json:"topic"`
	GapScore      float64 `json:"gap_score"`
	Confidence    float64 `json:"confidence"`
	QuestionCount int     `json:"question_count"`
}

// NewGapEntry derives a gap entry from a single confidence rating.
func NewGapEntry(subject, topic string, confidence float64) GapEntry {
	return GapEntry{
		Subject:       subject,
		Topic:         topic,
		GapScore:      MaxConfidence - confidence,
		Confidence:    confidence,
		QuestionCount: 1,
	}
}

// Merge folds another rating for the same pair in by running average.
func (g *GapEntry) Merge(confidence float64) {
	n := float64(g.QuestionCount)
	g.Confidence = (g.Confidence*n + confidence) / (n + 1)
	g.GapScore = (g.GapScore*n + (MaxConfidence - confidence)) / (n + 1)
	g.QuestionCount++
}

// SubjectAssessment groups the gap entries reported for one subject.
type SubjectAssessment struct {
	Name   string     `json:"name"`
	Topics []GapEntry `json:"topics"`
}

// WeakTopics returns topics with a gap at or above WeakGapThreshold, in order.
func (s SubjectAssessment) WeakTopics() []string {
	var out []string
	for _, t := range s.Topics {
		if t.GapScore >= WeakGapThreshold {
			out = append(out, t.Topic)
		}
	}
	return out
}

// Assessment is the validated input to plan generation.
type Assessment struct {
	ID                string              `json:"id"`
	UserID            string              `json:"user_id,omitempty"`
	Subjects          []SubjectAssessment `json:"subjects"`
	OverallConfidence float64             `json:"overall_confidence"`
	WeakAreas         int                 `json:"weak_areas"`
	StressLevel       float64             `json:"stress_level,omitempty"`
	SyllabusCoverage  float64             `json:"syllabus_coverage,omitempty"`
	TotalHours        float64             `json:"total_hours"`
	Days              int                 `json:"days"`
}

// Validate checks the assessment at the plan boundary.
func (a *Assessment) Validate() error {
	if len(a.Subjects) == 0 {
		return ErrNoSubjects
	}
	for name, v := range map[string]float64{
		"overall_confidence": a.OverallConfidence,
		"stress_level":       a.StressLevel,
		"syllabus_coverage":  a.SyllabusCoverage,
		"total_hours":        a.TotalHours,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite: %w", name, ErrInvalidInput)
		}
	}
	if a.TotalHours < 0 {
		return fmt.Errorf("total_hours must not be negative: %w", ErrInvalidInput)
	}
	if a.Days < 0 {
		return fmt.Errorf("days must not be negative: %w", ErrInvalidInput)
	}
	for i, s := range a.Subjects {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("subject %d has no name: %w", i, ErrInvalidInput)
		}
		for _, t := range s.Topics {
			if !inScale(t.GapScore) || !inScale(t.Confidence) {
				return fmt.Errorf("topic %q in %q: gap %v and confidence %v must lie in 0..%v: %w",
					t.Topic, s.Name, t.GapScore, t.Confidence, MaxConfidence, ErrInvalidInput)
			}
		}
	}
	return nil
}

// inScale is false for NaN.
func inScale(v float64) bool {
	return v >= 0 && v <= MaxConfidence
}

package model

import "time"

// MaxExamples is the number of examples exposed per prioritized topic.
const MaxExamples = 3

// PrioritizedTopic is the unit ranked and scheduled. ScheduledHours is the
// only field mutated after creation and never exceeds EstimatedHours.
type PrioritizedTopic struct {
	Subject          string    `json:"subject"`
	Topic            string    `json:"topic"`
	Priority         float64   `json:"priority"`
	Frequency        int       `json:"frequency"`
	AvgValue         float64   `json:"avg_value"`
	UnderstandingGap float64   `json:"understanding_gap"`
	Confidence       float64   `json:"confidence"`
	StressFactor     float64   `json:"stress_factor"`
	EstimatedHours   float64   `json:"estimated_hours"`
	ScheduledHours   float64   `json:"scheduled_hours"`
	Examples         []Example `json:"examples,omitempty"`
	Tips             []string  `json:"tips,omitempty"`
	Fallback         bool      `json:"fallback,omitempty"`
}

// RemainingHours is the unscheduled part of the estimate.
func (p *PrioritizedTopic) RemainingHours() float64 {
	return p.EstimatedHours - p.ScheduledHours
}

// DailyBlock is one study session within a day.
type DailyBlock struct {
	Topic      string   `json:"topic"`
	Subject    string   `json:"subject"`
	Hours      float64  `json:"hours"`
	Priority   float64  `json:"priority"`
	Activities []string `json:"activities"`
}

// ScheduleDay is one calendar day of the plan.
type ScheduleDay struct {
	Day        int          `json:"day"`
	Date       time.Time    `json:"date"` // Day days after the generation date
	TotalHours float64      `json:"total_hours"`
	Blocks     []DailyBlock `json:"blocks"`
}

// Summary is the headline of a plan.
type Summary struct {
	TotalTopics       int      `json:"total_topics"`
	TotalHours        float64  `json:"total_hours"`
	SubjectCount      int      `json:"subject_count"`
	OverallConfidence float64  `json:"overall_confidence"`
	WeakAreas         int      `json:"weak_areas"`
	DegradedSubjects  []string `json:"degraded_subjects,omitempty"`
	StressLevel       float64  `json:"stress_level,omitempty"`
	SyllabusCoverage  float64  `json:"syllabus_coverage,omitempty"`
}

// Recommendation kinds.
const (
	KindCritical = "critical"
	KindWarning  = "warning"
	KindTip      = "tip"
)

// Recommendation is one advisory message.
type Recommendation struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Plan is the assembled output of one generation run.
type Plan struct {
	ID              string              `json:"id"`
	AssessmentID    string              `json:"assessment_id"`
	GeneratedAt     time.Time           `json:"generated_at"`
	Summary         Summary             `json:"summary"`
	Topics          []*PrioritizedTopic `json:"topics"`
	Schedule        []ScheduleDay       `json:"schedule"`
	Recommendations []Recommendation    `json:"recommendations"`
}

// Degraded reports whether any subject fell back to assessment-only data.
func (p *Plan) Degraded() bool {
	return len(p.Summary.DegradedSubjects) > 0
}

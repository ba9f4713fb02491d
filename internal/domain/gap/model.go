package gap

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/examintel/internal/domain/model"
)

// Answer is one raw survey response.
type Answer struct {
	Subject    string  `json:"subject"`
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
}

// Model is the per-subject gap model built from raw answers.
type Model struct {
	Subjects          []model.SubjectAssessment
	OverallConfidence float64
	WeakAreas         int
}

// BuildModel groups answers by subject and topic in first-seen order, merging
// repeated pairs by running average.
func BuildModel(answers []Answer) (Model, error) {
	var (
		m       Model
		subject = make(map[string]int)
		topic   = make(map[string]map[string]int)
		sum     float64
	)
	for i, a := range answers {
		if math.IsNaN(a.Confidence) || a.Confidence < 0 || a.Confidence > model.MaxConfidence {
			return Model{}, fmt.Errorf("answer %d confidence %v outside 0..%v: %w",
				i, a.Confidence, model.MaxConfidence, model.ErrInvalidInput)
		}
		name := strings.TrimSpace(a.Subject)
		if name == "" {
			return Model{}, fmt.Errorf("answer %d has no subject: %w", i, model.ErrInvalidInput)
		}
		t := strings.TrimSpace(a.Topic)
		if t == "" {
			t = name
		}
		sum += a.Confidence

		si, ok := subject[name]
		if !ok {
			si = len(m.Subjects)
			subject[name] = si
			topic[name] = make(map[string]int)
			m.Subjects = append(m.Subjects, model.SubjectAssessment{Name: name})
		}
		s := &m.Subjects[si]
		if ti, ok := topic[name][t]; ok {
			s.Topics[ti].Merge(a.Confidence)
			continue
		}
		topic[name][t] = len(s.Topics)
		s.Topics = append(s.Topics, model.NewGapEntry(name, t, a.Confidence))
	}
	if len(answers) > 0 {
		m.OverallConfidence = sum / float64(len(answers))
	}
	for _, s := range m.Subjects {
		m.WeakAreas += len(s.WeakTopics())
	}
	return m, nil
}

// Apply copies the model into an assessment.
func (m Model) Apply(a *model.Assessment) {
	a.Subjects = m.Subjects
	a.OverallConfidence = m.OverallConfidence
	a.WeakAreas = m.WeakAreas
}

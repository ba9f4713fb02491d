// Package recommend derives advisory messages from a ranked plan.
package recommend

import "github.com/okian/examintel/internal/domain/model"

// Rule thresholds.
const (
	LowConfidence        = 2.5
	HighPriority         = 50.0
	MaxHighPriorityTopic = 10
)

// Messages.
const (
	MsgFundamentals  = "Your overall confidence is low. Focus on fundamentals before moving to past-year questions."
	MsgHighLoad      = "More than 10 topics are high priority. Spread them out and avoid cramming them into the final days."
	MsgExamCondition = "Practise past-year questions under timed exam conditions."
	MsgDailyReview   = "Spend a few minutes every day revisiting your weak areas."
)

// Generate applies every rule independently. The result always ends with two tips.
func Generate(overallConfidence float64, topics []*model.PrioritizedTopic) []model.Recommendation {
	out := make([]model.Recommendation, 0, 4)
	if overallConfidence < LowConfidence {
		out = append(out, model.Recommendation{Kind: model.KindCritical, Message: MsgFundamentals})
	}
	high := 0
	for _, t := range topics {
		if t.Priority > HighPriority {
			high++
		}
	}
	if high > MaxHighPriorityTopic {
		out = append(out, model.Recommendation{Kind: model.KindWarning, Message: MsgHighLoad})
	}
	return append(out,
		model.Recommendation{Kind: model.KindTip, Message: MsgExamCondition},
		model.Recommendation{Kind: model.KindTip, Message: MsgDailyReview},
	)
}

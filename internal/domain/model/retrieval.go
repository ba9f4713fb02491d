// Package model contains domain models passed between layers.
package model

import "strings"

// Difficulty tags attached to past papers.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Estimated marks per difficulty tag.
const (
	MarksHard    = 8
	MarksEasy    = 3
	MarksDefault = 5
)

// PaperReference links a retrieved chunk to a historical exam paper.
type PaperReference struct {
	Subject    string   `json:"subject"`
	Year       int      `json:"year,omitempty"` // 0 when unknown
	Difficulty string   `json:"difficulty,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

// Marks maps the difficulty tag to estimated marks. Medium and unknown tags
// both map to MarksDefault.
func (p PaperReference) Marks() int {
	switch strings.ToLower(strings.TrimSpace(p.Difficulty)) {
	case DifficultyHard:
		return MarksHard
	case DifficultyEasy:
		return MarksEasy
	default:
		return MarksDefault
	}
}

// RetrievalHit is one chunk returned by the retrieval collaborator.
type RetrievalHit struct {
	Text   string           `json:"text"`
	Score  float64          `json:"score"` // relevance in [0,1]
	Papers []PaperReference `json:"papers,omitempty"`

	Filename  string `json:"filename,omitempty"`
	Chunk     int    `json:"chunk,omitempty"`
	PageStart int    `json:"page_start,omitempty"`
	PageEnd   int    `json:"page_end,omitempty"`
}

// Example is a retained question excerpt.
type Example struct {
	Text    string `json:"text"`
	Year    int    `json:"year,omitempty"`
	Subject string `json:"subject"`
	Marks   int    `json:"marks"`
}

// TopicStat aggregates retrieval signal for one topic.
type TopicStat struct {
	Topic           string
	Frequency       int
	CumulativeValue float64
	RelevanceSum    float64
	AvgValue        float64
	AvgRelevance    float64
	YearCount       int
	Examples        []Example
}

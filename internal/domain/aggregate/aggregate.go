// Package aggregate folds retrieval hits into per-topic statistics.
package aggregate

import (
	"strings"

	"github.com/okian/examintel/internal/domain/model"
)

// MaxExampleRunes bounds the length of a retained example excerpt.
const MaxExampleRunes = 200

// Stats is an insertion-ordered map of topic statistics.
type Stats struct {
	order []string
	byKey map[string]*model.TopicStat
	years map[string]map[int]struct{}
}

func newStats() *Stats {
	return &Stats{
		byKey: make(map[string]*model.TopicStat),
		years: make(map[string]map[int]struct{}),
	}
}

// Len returns the number of topics.
func (s *Stats) Len() int { return len(s.order) }

// Get returns the statistic for topic, if present.
func (s *Stats) Get(topic string) (*model.TopicStat, bool) {
	st, ok := s.byKey[topic]
	return st, ok
}

// Topics returns the statistics in first-seen order.
func (s *Stats) Topics() []*model.TopicStat {
	out := make([]*model.TopicStat, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byKey[k])
	}
	return out
}

// Aggregate folds hits into per-topic statistics. Empty input yields empty stats.
func Aggregate(hits []model.RetrievalHit) *Stats {
	s := newStats()
	for _, hit := range hits {
		if len(hit.Papers) == 0 {
			continue
		}
		excerpt := truncate(hit.Text, MaxExampleRunes)
		for _, paper := range hit.Papers {
			marks := paper.Marks()
			topics := paper.Topics
			if len(topics) == 0 {
				if strings.TrimSpace(paper.Subject) == "" {
					continue
				}
				topics = []string{paper.Subject}
			}
			for _, topic := range topics {
				s.add(topic, hit.Score, marks, paper, excerpt)
			}
		}
	}
	s.finalize()
	return s
}

func (s *Stats) add(topic string, relevance float64, marks int, paper model.PaperReference, excerpt string) {
	st, ok := s.byKey[topic]
	if !ok {
		st = &model.TopicStat{Topic: topic}
		s.byKey[topic] = st
		s.years[topic] = make(map[int]struct{})
		s.order = append(s.order, topic)
	}
	st.Frequency++
	st.CumulativeValue += float64(marks)
	st.RelevanceSum += relevance
	st.Examples = append(st.Examples, model.Example{
		Text:    excerpt,
		Year:    paper.Year,
		Subject: paper.Subject,
		Marks:   marks,
	})
	if paper.Year != 0 {
		s.years[topic][paper.Year] = struct{}{}
	}
}

// finalize computes the derived fields and drops the year sets.
func (s *Stats) finalize() {
	for _, k := range s.order {
		st := s.byKey[k]
		n := float64(st.Frequency)
		st.AvgValue = st.CumulativeValue / n
		st.AvgRelevance = st.RelevanceSum / n
		st.YearCount = len(s.years[k])
	}
	s.years = nil
}

func truncate(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}

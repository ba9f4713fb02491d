// Package ranking orders prioritized topics.
package ranking

import (
	"sort"

	"github.com/okian/examintel/internal/domain/model"
)

// DefaultMaxTopics caps the ranked list.
const DefaultMaxTopics = 15

// Rank concatenates groups in order, stable-sorts by priority descending and
// truncates to limit. A non-positive limit uses DefaultMaxTopics.
func Rank(groups [][]*model.PrioritizedTopic, limit int) []*model.PrioritizedTopic {
	if limit <= 0 {
		limit = DefaultMaxTopics
	}
	var pool []*model.PrioritizedTopic
	for _, g := range groups {
		pool = append(pool, g...)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Priority > pool[j].Priority
	})
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}

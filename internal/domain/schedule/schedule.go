// Package schedule allocates study hours to days.
package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/examintel/internal/domain/model"
)

// DefaultMaxBlockHours caps the hours one topic gets on one day.
const DefaultMaxBlockHours = 2.0

// epsilon absorbs float drift from splitting hours across days.
const epsilon = 1e-9

// Activities attached to every block.
var Activities = []string{"Review PYQ examples", "Practice problems", "Revise weak concepts"}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the time source used for day dates.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithMaxBlockHours sets the per-topic per-day cap.
func WithMaxBlockHours(h float64) Option {
	return func(b *Builder) {
		if h > 0 && !math.IsInf(h, 0) {
			b.maxBlock = h
		}
	}
}

// Builder greedily fills days with topic blocks.
type Builder struct {
	now      func() time.Time
	maxBlock float64
}

// New creates a builder with configuration options.
func New(opts ...Option) *Builder {
	b := &Builder{
		now:      time.Now,
		maxBlock: DefaultMaxBlockHours,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build allocates totalHours across days. Topics must be in priority order;
// their ScheduledHours are advanced in place.
func (b *Builder) Build(topics []*model.PrioritizedTopic, totalHours float64, days int) ([]model.ScheduleDay, error) {
	if math.IsNaN(totalHours) || math.IsInf(totalHours, 0) || totalHours < 0 {
		return nil, fmt.Errorf("total hours %v: %w", totalHours, model.ErrInvalidInput)
	}
	if totalHours == 0 || days <= 0 {
		return []model.ScheduleDay{}, nil
	}

	today := b.now()
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	perDay := totalHours / float64(days)
	remaining := totalHours
	out := make([]model.ScheduleDay, 0, days)

	for d := 1; d <= days && remaining > epsilon; d++ {
		day := model.ScheduleDay{Day: d, Date: start.AddDate(0, 0, d)}
		for _, t := range topics {
			if perDay-day.TotalHours <= epsilon {
				break
			}
			need := t.RemainingHours()
			if need <= epsilon {
				continue
			}
			alloc := math.Min(math.Min(need, perDay-day.TotalHours), math.Min(remaining, b.maxBlock))
			if alloc <= epsilon {
				continue
			}
			day.Blocks = append(day.Blocks, model.DailyBlock{
				Topic:      t.Topic,
				Subject:    t.Subject,
				Hours:      alloc,
				Priority:   t.Priority,
				Activities: append([]string(nil), Activities...),
			})
			t.ScheduledHours += alloc
			day.TotalHours += alloc
			remaining -= alloc
			if remaining <= epsilon {
				break
			}
		}
		if len(day.Blocks) == 0 {
			break
		}
		out = append(out, day)
	}
	return out, nil
}

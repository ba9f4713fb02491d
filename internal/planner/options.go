package planner

import (
	"time"

	"github.com/okian/examintel/internal/domain/gap"
	"github.com/okian/examintel/internal/domain/schedule"
	"github.com/okian/examintel/pkg/logger"
)

// Option applies a configuration option to the Planner.
type Option func(*Planner)

// WithRetriever sets the retrieval collaborator. Without one every subject
// takes the fallback path.
func WithRetriever(r Retriever) Option {
	return func(p *Planner) {
		if r != nil {
			p.retriever = r
		}
	}
}

// WithResolver sets the gap resolver.
func WithResolver(r *gap.Resolver) Option {
	return func(p *Planner) {
		if r != nil {
			p.resolver = r
		}
	}
}

// WithScheduleBuilder sets the schedule builder.
func WithScheduleBuilder(b *schedule.Builder) Option {
	return func(p *Planner) {
		if b != nil {
			p.builder = b
		}
	}
}

// WithMaxTopics caps the ranked topic list.
func WithMaxTopics(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxTopics = n
		}
	}
}

// WithTopK sets how many hits are requested per subject.
func WithTopK(k int) Option {
	return func(p *Planner) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithRetrievalTimeout bounds each per-subject retrieval.
func WithRetrievalTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithConcurrency limits parallel retrievals within one plan.
func WithConcurrency(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithClock sets the time source for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDGenerator sets the plan id generator.
func WithIDGenerator(gen func() string) Option {
	return func(p *Planner) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the planner.
func WithLogger(l logger.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

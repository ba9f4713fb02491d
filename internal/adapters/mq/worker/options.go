package worker

import (
	"time"

	"github.com/okian/examintel/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithReleaser sets who is told when a job's assessment is no longer in flight.
func WithReleaser(r Releaser) Option {
	return func(p *Pool) {
		if r != nil {
			p.releaser = r
		}
	}
}

// WithJobTimeout bounds one plan generation plus save.
func WithJobTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.jobTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the pool and its workers.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

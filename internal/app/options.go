package service

import (
	"time"

	"github.com/okian/examintel/internal/adapters/repository"
	"github.com/okian/examintel/internal/config"
	"github.com/okian/examintel/internal/planner"
	"github.com/okian/examintel/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration the service is built from.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRetriever replaces the retrieval client built from configuration.
func WithRetriever(r planner.Retriever) Option {
	return func(s *Service) {
		if r != nil {
			s.retriever = r
		}
	}
}

// WithStore replaces the plan store built from configuration. The service
// closes it on Stop.
func WithStore(store repository.PlanStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock sets the time source for plan timestamps and schedule dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

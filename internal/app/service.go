// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/examintel/internal/adapters/mq/queue"
	"github.com/okian/examintel/internal/adapters/mq/worker"
	"github.com/okian/examintel/internal/adapters/repository"
	"github.com/okian/examintel/internal/adapters/retrieval"
	"github.com/okian/examintel/internal/config"
	"github.com/okian/examintel/internal/domain/dedupe"
	"github.com/okian/examintel/internal/domain/gap"
	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/internal/domain/schedule"
	"github.com/okian/examintel/internal/planner"
	"github.com/okian/examintel/pkg/logger"
	"github.com/okian/examintel/pkg/metrics"
)

// Service owns the planner, the plan store and the async job pipeline.
type Service struct {
	mu sync.RWMutex

	cfg       *config.Config
	retriever planner.Retriever
	store     repository.PlanStore
	now       func() time.Time

	planner *planner.Planner
	deduper dedupe.Deduper
	jobs    *queue.InMemoryQueue
	pool    *worker.Pool
	closers []io.Closer

	// set when Start built the component from configuration
	ownsRetriever bool
	ownsStore     bool

	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(context.Background()),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds every component from configuration and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.cfg.Validate(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.logger.Info(ctx, "starting plan service...")

	if s.retriever == nil {
		r, err := s.buildRetriever(ctx)
		if err != nil {
			return err
		}
		s.retriever = r
		s.ownsRetriever = true
	}
	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			s.closeAll(ctx)
			s.releaseOwned()
			return err
		}
		s.store = store
		s.ownsStore = true
	}

	s.planner = planner.New(
		planner.WithRetriever(s.retriever),
		planner.WithResolver(gap.NewResolver(
			gap.WithStressSource(s.cfg.StressSource),
			gap.WithCoverageSource(s.cfg.CoverageSource),
		)),
		planner.WithScheduleBuilder(schedule.New(
			schedule.WithMaxBlockHours(s.cfg.MaxBlockHours),
			schedule.WithClock(s.now),
		)),
		planner.WithMaxTopics(s.cfg.MaxTopics),
		planner.WithTopK(s.cfg.DefaultTopK),
		planner.WithRetrievalTimeout(s.cfg.RetrievalTimeout()),
		planner.WithClock(s.now),
		planner.WithLogger(s.logger.Named("planner")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.jobs, s.planner, s.store,
		worker.WithReleaser(s.deduper),
		worker.WithLogger(s.logger.Named("worker-pool")),
	)

	// Workers outlive the caller's context so Stop can drain the queue.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "plan service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.cfg.QueueSize),
		logger.Int("dedupe_size", s.cfg.DedupeSize),
		logger.String("store", s.cfg.StoreDriver),
		logger.Bool("retrieval", s.retriever != nil),
	)
	return nil
}

// buildRetriever returns nil when no retrieval URL is configured, in which
// case every subject takes the fallback path. An unreachable Redis disables
// the cache rather than failing startup.
func (s *Service) buildRetriever(ctx context.Context) (planner.Retriever, error) {
	if s.cfg.RetrievalURL == "" {
		s.logger.Warn(ctx, "retrieval_url not set; plans will use fallback topics only")
		return nil, nil
	}
	client, err := retrieval.NewClient(s.cfg.RetrievalURL,
		retrieval.WithUserID(s.cfg.RetrievalUserID),
		retrieval.WithLogger(s.logger.Named("retrieval")),
	)
	if err != nil {
		return nil, fmt.Errorf("retrieval client: %w", err)
	}
	if !s.cfg.CacheEnabled {
		return client, nil
	}

	cache, err := retrieval.NewRedisCache(ctx, s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB)
	if err != nil {
		s.logger.Warn(ctx, "retrieval cache disabled", logger.String("redis_addr", s.cfg.RedisAddr), logger.Error(err))
		return client, nil
	}
	s.closers = append(s.closers, cache)
	return retrieval.NewCachedRetriever(client, cache,
		retrieval.WithTTL(s.cfg.CacheTTL()),
		retrieval.WithNamespace(s.cfg.RetrievalUserID),
		retrieval.WithCacheLogger(s.logger.Named("retrieval-cache")),
	), nil
}

func (s *Service) openStore(ctx context.Context) (repository.PlanStore, error) {
	switch s.cfg.StoreDriver {
	case config.StorePostgres:
		store, err := repository.NewPostgresStore(ctx, s.cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open plan store: %w", err)
		}
		return store, nil
	default:
		return repository.NewMemoryStore(ctx), nil
	}
}

// Stop drains queued jobs until ctx expires, then releases the store and cache.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping plan service...")

	err := s.pool.Shutdown(ctx)
	s.cancel()
	if cerr := s.store.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close plan store: %w", cerr))
	}
	s.closeAll(ctx)
	s.releaseOwned()

	s.started = false
	s.logger.Info(ctx, "plan service stopped",
		logger.Int("processed", int(s.pool.Processed())),
		logger.Int("failed", int(s.pool.Failed())),
	)
	return err
}

func (s *Service) closeAll(ctx context.Context) {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn(ctx, "close failed", logger.Error(err))
		}
	}
	s.closers = nil
}

// releaseOwned drops closed components so the next Start rebuilds them.
// Injected ones are kept.
func (s *Service) releaseOwned() {
	if s.ownsRetriever {
		s.retriever = nil
		s.ownsRetriever = false
	}
	if s.ownsStore {
		s.store = nil
		s.ownsStore = false
	}
}

// running returns the started components or ErrNotStarted.
func (s *Service) running() (*planner.Planner, repository.PlanStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.planner, s.store, nil
}

// GeneratePlan builds a plan for a and stores it.
func (s *Service) GeneratePlan(ctx context.Context, a *model.Assessment) (*model.Plan, error) {
	p, store, err := s.running()
	if err != nil {
		return nil, err
	}
	plan, err := p.Generate(ctx, a)
	if err != nil {
		return nil, err
	}
	id, err := store.Save(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	plan.ID = id
	return plan, nil
}

// Plan returns a stored plan.
func (s *Service) Plan(ctx context.Context, planID string) (*model.Plan, error) {
	_, store, err := s.running()
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, planID)
}

// LatestPlan returns the most recent plan for an assessment.
func (s *Service) LatestPlan(ctx context.Context, assessmentID string) (*model.Plan, error) {
	_, store, err := s.running()
	if err != nil {
		return nil, err
	}
	return store.LatestForAssessment(ctx, assessmentID)
}

// SeenAndRecord marks an assessment in flight. It returns true when it
// already was.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d == nil {
		return false
	}
	seen := d.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordJobDuplicate()
	}
	return seen
}

// Unrecord releases an in-flight assessment id.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d != nil {
		d.Unrecord(ctx, id)
	}
}

// Size returns the number of assessments in flight.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits a plan job for asynchronous processing.
func (s *Service) Enqueue(ctx context.Context, job queue.Job) error {
	s.mu.RLock()
	started, jobs := s.started, s.jobs
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	s.logger.Debug(ctx, "enqueueing plan job",
		logger.String("job_id", job.ID),
		logger.String("assessment_id", job.Assessment.ID),
	)
	return jobs.Enqueue(ctx, job)
}

// GetStats returns service statistics for monitoring and refreshes the
// gauges they mirror.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"store_driver": s.cfg.StoreDriver,
		"retrieval":    s.retriever != nil,
		"cache":        len(s.closers) > 0,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	queueLen := s.jobs.Len(ctx)
	stats["uptime_seconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	stats["worker_count"] = s.pool.Size()
	stats["queue_capacity"] = s.jobs.Capacity()
	stats["queue_length"] = queueLen
	stats["in_flight"] = s.deduper.Size()
	stats["jobs_processed"] = s.pool.Processed()
	stats["jobs_failed"] = s.pool.Failed()
	metrics.UpdateQueueSize(queueLen)

	if n, err := s.store.Count(ctx); err == nil {
		stats["plans_stored"] = n
		metrics.UpdateStoreRecords(n)
	} else {
		s.logger.Warn(ctx, "plan store count failed", logger.Error(err))
	}
	return stats
}

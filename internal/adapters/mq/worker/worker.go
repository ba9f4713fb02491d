// Package worker runs queued plan generation jobs.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/examintel/internal/adapters/mq/queue"
	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/logger"
	"github.com/okian/examintel/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2
	defaultJobTimeout       = 60 * time.Second
)

// Generator builds a plan from an assessment.
type Generator interface {
	Generate(ctx context.Context, a *model.Assessment) (*model.Plan, error)
}

// Saver persists a generated plan.
type Saver interface {
	Save(ctx context.Context, plan *model.Plan) (string, error)
}

// Releaser is told when an assessment id is no longer in flight.
type Releaser interface {
	Unrecord(ctx context.Context, id string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

type noopReleaser struct{}

func (noopReleaser) Unrecord(context.Context, string) {}

// planWorker consumes jobs until the queue closes or the pool stops.
type planWorker struct {
	pool   *Pool
	logger logger.Logger
	done   chan struct{}
}

func (w *planWorker) run(ctx context.Context) {
	defer close(w.done)

	jobs := w.pool.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.pool.stop:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.pool.process(ctx, job); err != nil {
				w.logger.Error(ctx, "plan job failed",
					logger.String("job_id", job.ID),
					logger.String("assessment_id", job.Assessment.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Pool manages plan workers sharing one queue.
type Pool struct {
	queue      Queue
	generator  Generator
	saver      Saver
	releaser   Releaser
	jobTimeout time.Duration
	workers    []*planWorker

	processed atomic.Int64
	failed    atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	logger   logger.Logger
}

// NewPool creates a worker pool. A non-positive count uses twice the CPU count.
func NewPool(workerCount int, q Queue, gen Generator, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		queue:      q,
		generator:  gen,
		saver:      saver,
		releaser:   noopReleaser{},
		jobTimeout: defaultJobTimeout,
		stop:       make(chan struct{}),
		logger:     logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.workers = make([]*planWorker, workerCount)
	for i := range p.workers {
		p.workers[i] = &planWorker{
			pool:   p,
			logger: p.logger.Named("worker-" + strconv.Itoa(i)),
			done:   make(chan struct{}),
		}
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs that produced a stored plan.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns the number of jobs that did not produce a stored plan.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// process generates and stores one plan. The assessment id is always released.
func (p *Pool) process(ctx context.Context, job queue.Job) (err error) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	metrics.AddWorkerBusy(1)
	defer func() {
		metrics.AddWorkerBusy(-1)
		metrics.RecordWorkerJob(time.Since(start), err)
		if err != nil {
			p.failed.Add(1)
		} else {
			p.processed.Add(1)
		}
		p.releaser.Unrecord(ctx, job.Assessment.ID)
	}()

	jctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	a := job.Assessment
	plan, err := p.generator.Generate(jctx, &a)
	if err != nil {
		return fmt.Errorf("generate plan for job %s: %w", job.ID, err)
	}
	id, err := p.saver.Save(jctx, plan)
	if err != nil {
		return fmt.Errorf("save plan for job %s: %w", job.ID, err)
	}
	p.logger.Info(ctx, "plan job done",
		logger.String("job_id", job.ID),
		logger.String("plan_id", id),
		logger.Duration("queued", start.Sub(job.EnqueuedAt)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Shutdown closes the queue and waits for workers to drain it. When ctx
// expires first the remaining workers are stopped without draining.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.stopOnce.Do(func() { close(p.stop) })
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}

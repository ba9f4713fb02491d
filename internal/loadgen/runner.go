package loadgen

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/examintel/pkg/logger"
)

// Run submits cfg.Assessments plan jobs and waits for a sample of the
// accepted ones to produce plans.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("loadgen")
	start := time.Now()
	stats := &Stats{}

	log.Info(ctx, "starting load run",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("assessments", cfg.Assessments),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := client.health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	reqs := Generate(cfg.Assessments, cfg.Seed, "load-"+strconv.FormatInt(start.Unix(), 10))
	stats.Generated = len(reqs)

	accepted, err := submitAll(ctx, client, cfg.Workers, reqs, stats)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
	)

	sample := accepted
	if len(sample) > cfg.VerifySample {
		sample = sample[:cfg.VerifySample]
	}
	if err := verify(ctx, client, sample, cfg.WaitTimeout, stats); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("verified", stats.Verified),
		logger.Int("missing", stats.Missing),
		logger.Duration("duration", stats.Duration),
		logger.Float64("success_rate", stats.SuccessRate()),
	)
	return stats, nil
}

// submitAll posts every request with at most workers in flight and returns
// the ids that were accepted, in submission order.
func submitAll(ctx context.Context, client *httpClient, workers int, reqs []Request, stats *Stats) ([]string, error) {
	var accepted, duplicate, rejected, failed atomic.Int64
	outcomes := make([]outcome, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = client.submit(gctx, reqs[i])
			switch outcomes[i] {
			case outcomeAccepted:
				accepted.Add(1)
			case outcomeDuplicate:
				duplicate.Add(1)
			case outcomeRejected:
				rejected.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("submission interrupted: %w", err)
	}

	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Rejected = int(rejected.Load())
	stats.Failed = int(failed.Load())
	stats.Submitted = stats.Accepted + stats.Duplicate + stats.Rejected + stats.Failed

	ids := make([]string, 0, stats.Accepted)
	for i, o := range outcomes {
		if o == outcomeAccepted {
			ids = append(ids, reqs[i].ID)
		}
	}
	return ids, nil
}

// verify polls until every sampled assessment has a plan or wait elapses.
func verify(ctx context.Context, client *httpClient, ids []string, wait time.Duration, stats *Stats) error {
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		for id := range pending {
			ok, err := client.hasPlan(ctx, id)
			if err != nil {
				return err
			}
			if ok {
				delete(pending, id)
				stats.Verified++
			}
		}
		if len(pending) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("verification interrupted: %w", ctx.Err())
		case <-deadline.C:
			stats.Missing = len(pending)
			return nil
		case <-ticker.C:
		}
	}
}

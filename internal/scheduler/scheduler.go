// Package scheduler drives the periodic deactivation batch: find every
// account whose grace period has elapsed and archive each one independently.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"applygate/internal/lifecycle"
	"applygate/internal/scheduler/metrics"
	id "applygate/pkg/domain"
	"applygate/pkg/requestcontext"
)

// Deactivator executes one account's deactivation transactionally.
type Deactivator interface {
	ExecuteDeactivation(ctx context.Context, userID id.UserID, archivedBy *id.UserID) error
}

// Report summarizes one batch run.
type Report struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Scheduler runs deactivation batches with a bounded worker pool. One
// account's failure is logged and counted, never allowed to abort the rest;
// the failed account stays due and is retried on the next run.
type Scheduler struct {
	accounts  lifecycle.AccountStore
	lifecycle Deactivator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	workers   int
}

func New(accounts lifecycle.AccountStore, deactivator Deactivator, m *metrics.Metrics, logger *slog.Logger, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		accounts:  accounts,
		lifecycle: deactivator,
		metrics:   m,
		logger:    logger,
		workers:   workers,
	}
}

// Run processes every account due at the request time and reports the
// outcome counts.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	s.metrics.Runs.Inc()

	due, err := s.accounts.ListDueForDeactivation(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		s.logger.InfoContext(ctx, "deactivation run: nothing due")
		return &Report{}, nil
	}

	var succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, account := range due {
		userID := account.ID
		g.Go(func() error {
			if err := s.lifecycle.ExecuteDeactivation(gctx, userID, nil); err != nil {
				failed.Add(1)
				s.metrics.Failed.Inc()
				s.logger.ErrorContext(gctx, "deactivation failed",
					"user_id", userID.String(),
					"error", err.Error(),
				)
				return nil
			}
			succeeded.Add(1)
			s.metrics.Succeeded.Inc()
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Processed: len(due),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
	s.metrics.RunDuration.Observe(time.Since(start).Seconds())
	s.logger.InfoContext(ctx, "deactivation run complete",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)
	return report, nil
}

// RunEvery blocks, running a batch each interval until the context ends.
func (s *Scheduler) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.ErrorContext(ctx, "deactivation run failed", "error", err.Error())
			}
		}
	}
}

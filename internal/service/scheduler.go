package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/evekb/killfeed/internal/domain/job"
	"github.com/evekb/killfeed/internal/queue"
)

// SchedulerOptions configures the periodic job enqueuer.
type SchedulerOptions struct {
	Queue *queue.Queue

	RefreshInterval time.Duration
	FetchInterval   time.Duration
	ResolveInterval time.Duration

	Logger *slog.Logger
}

// Scheduler owns the three recurring cadences of the pipeline: token
// refresh, killmail listing, and killmail resolution. It does no work
// itself; each tick enqueues the corresponding job for the processor.
type Scheduler struct {
	queue           *queue.Queue
	refreshInterval time.Duration
	fetchInterval   time.Duration
	resolveInterval time.Duration
	logger          *slog.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queue:           opts.Queue,
		refreshInterval: opts.RefreshInterval,
		fetchInterval:   opts.FetchInterval,
		resolveInterval: opts.ResolveInterval,
		logger:          logger,
	}
}

// Run ticks until the context is canceled. Cancellation is a normal
// shutdown, not an error. Enqueues block when the queue is full, so a slow
// processor delays later ticks instead of dropping them.
func (s *Scheduler) Run(ctx context.Context) error {
	refresh := time.NewTicker(s.refreshInterval)
	defer refresh.Stop()
	fetch := time.NewTicker(s.fetchInterval)
	defer fetch.Stop()
	resolve := time.NewTicker(s.resolveInterval)
	defer resolve.Stop()

	s.logger.InfoContext(ctx, "scheduler started",
		"refresh_interval", s.refreshInterval,
		"fetch_interval", s.fetchInterval,
		"resolve_interval", s.resolveInterval)

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-refresh.C:
			s.enqueue(ctx, job.Refresh())
		case <-fetch.C:
			s.enqueue(ctx, job.FetchKillmails())
		case <-resolve.C:
			s.enqueue(ctx, job.ResolveKillmails())
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, j job.Job) {
	if err := s.queue.Enqueue(ctx, j); err != nil {
		s.logger.ErrorContext(ctx, "enqueue scheduled job failed", "kind", j.Kind, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "scheduled job enqueued", "kind", j.Kind)
}

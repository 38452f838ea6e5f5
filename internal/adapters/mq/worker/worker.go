// Package worker runs queued rating updates one at a time.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/logger"
	"github.com/okian/gaffer/pkg/metrics"
)

// Request abstracts what the runner reads off the queue.
type Request = model.RunRequest

// Updater performs one incremental rating run.
type Updater interface {
	Run(ctx context.Context, runID string) (model.RunResult, error)
}

// Queue defines how the runner receives requests and schedules its own.
type Queue interface {
	Enqueue(ctx context.Context, r Request) bool
	Dequeue(ctx context.Context) <-chan Request
}

// Stats is a point-in-time view of the runner.
type Stats struct {
	Completed   int64
	Failed      int64
	Scheduled   int64
	LastRunID   string
	LastSuccess time.Time
}

// Runner drains the queue with a single goroutine so rating runs never
// overlap. With an interval set it also enqueues scheduled runs.
type Runner struct {
	queue    Queue
	updater  Updater
	name     string
	interval time.Duration

	completed   atomic.Int64
	failed      atomic.Int64
	scheduled   atomic.Int64
	lastRunID   atomic.Value // string
	lastSuccess atomic.Int64 // unix nanoseconds

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewRunner creates a runner with configuration options.
func NewRunner(queue Queue, updater Updater, opts ...Option) *Runner {
	r := &Runner{
		queue:    queue,
		updater:  updater,
		name:     "runner",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("runner"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.name != "runner" {
		r.logger = r.logger.Named(r.name)
	}

	return r
}

// Run starts the runner loop until ctx is canceled, Shutdown is called or
// the queue is closed.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	requests := r.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdown:
			return
		case <-tick:
			r.schedule(ctx)
		case req, ok := <-requests:
			if !ok {
				return
			}
			r.process(ctx, req)
		}
	}
}

func (r *Runner) schedule(ctx context.Context) {
	req := model.NewRunRequest("schedule")
	if !r.queue.Enqueue(ctx, req) {
		// a pending run will pick up the same matches
		r.logger.Debug(ctx, "scheduled run skipped, queue busy")
		return
	}
	r.scheduled.Add(1)
}

func (r *Runner) process(ctx context.Context, req Request) {
	log := r.logger.With(logger.String("run_id", req.ID), logger.String("reason", req.Reason))
	log.Debug(ctx, "run started", logger.Duration("queued_for", time.Since(req.EnqueuedAt)))

	res, err := r.updater.Run(ctx, req.ID)
	r.lastRunID.Store(req.ID)
	if err != nil {
		r.failed.Add(1)
		metrics.RecordErrorByComponent("runner", "run_failed")
		log.Error(ctx, "run failed", logger.Error(err))
	} else {
		r.completed.Add(1)
		r.lastSuccess.Store(res.FinishedAt.UnixNano())
	}

	if req.Reply != nil {
		select {
		case req.Reply <- model.RunOutcome{Result: res, Err: err}:
		default:
			log.Warn(ctx, "run reply dropped")
		}
	}
}

// Stats returns runner counters.
func (r *Runner) Stats() Stats {
	s := Stats{
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
		Scheduled: r.scheduled.Load(),
	}
	if id, ok := r.lastRunID.Load().(string); ok {
		s.LastRunID = id
	}
	if ns := r.lastSuccess.Load(); ns != 0 {
		s.LastSuccess = time.Unix(0, ns)
	}
	return s
}

// Shutdown gracefully stops the runner. A run in progress finishes first.
func (r *Runner) Shutdown(ctx context.Context) error {
	select {
	case <-r.shutdown:
	default:
		close(r.shutdown)
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

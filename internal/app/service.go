// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/okian/gaffer/internal/adapters/feed"
	runqueue "github.com/okian/gaffer/internal/adapters/mq/queue"
	"github.com/okian/gaffer/internal/adapters/mq/worker"
	"github.com/okian/gaffer/internal/adapters/repository"
	"github.com/okian/gaffer/internal/domain/elo"
	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/internal/domain/types"
	"github.com/okian/gaffer/pkg/logger"
	"github.com/okian/gaffer/pkg/metrics"
)

const (
	defaultQueueSize = 4
	shutdownTimeout  = 30 * time.Second
)

// Service implements the API dependencies for the rating system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	feed    feed.Feed
	updater *Updater
	queue   *runqueue.InMemoryQueue
	runner  *worker.Runner

	// Configuration
	engineOpts []elo.Option
	queueSize  int
	interval   time.Duration
	runOnStart bool

	// State
	started bool
	cancel  context.CancelFunc
	runMu   sync.Mutex
	last    model.RunResult

	logger logger.Logger
}

// New constructs a Service. Components not set through options fall back
// to in-memory ones.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize: defaultQueueSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.feed == nil {
		s.feed = feed.NewStaticFeed(nil)
	}
	s.updater = NewUpdater(s.store, s.feed, s.engineOpts, s.logger)

	return s
}

// Start launches the run queue and its worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting rating service...")

	s.queue = runqueue.NewInMemoryQueue(runqueue.WithCapacity(s.queueSize))
	s.runner = worker.NewRunner(s.queue, s,
		worker.WithLogger(s.logger.Named("runner")),
		worker.WithInterval(s.interval),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.runner.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("queueSize", s.queueSize),
		logger.Duration("updateInterval", s.interval),
	)

	if s.runOnStart {
		if !s.queue.Enqueue(ctx, model.NewRunRequest("startup")) {
			s.logger.Warn(ctx, "startup run not queued")
		}
	}

	return nil
}

// Stop drains the runner, closes the queue and the store.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	runner, q, cancelRun := s.runner, s.queue, s.cancel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating service...")

	sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := runner.Shutdown(sctx); err != nil {
		s.logger.Warn(ctx, "runner did not stop cleanly", logger.Error(err))
	}
	cancelRun()
	_ = q.Close()
	s.store.Close()

	s.logger.Info(ctx, "rating service stopped")
}

// Run executes one update. The runner calls it for every dequeued request;
// direct callers are serialized with it.
func (s *Service) Run(ctx context.Context, runID string) (model.RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	res, err := s.updater.Run(ctx, runID)
	if err == nil {
		s.mu.Lock()
		s.last = res
		s.mu.Unlock()
	}
	return res, err
}

// TriggerUpdate queues a run and returns its id without waiting for it.
func (s *Service) TriggerUpdate(ctx context.Context, reason string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", ErrNotStarted
	}

	req := model.NewRunRequest(reason)
	if !s.queue.Enqueue(ctx, req) {
		return "", ErrBackpressure
	}
	s.logger.Debug(ctx, "update queued", logger.String("run_id", req.ID), logger.String("reason", reason))
	return req.ID, nil
}

// RunNow performs a run and waits for its result. A started service routes
// it through the queue; otherwise it runs inline.
func (s *Service) RunNow(ctx context.Context, reason string) (model.RunResult, error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()

	if !started {
		return s.Run(ctx, model.NewRunRequest(reason).ID)
	}

	req := model.NewRunRequest(reason)
	req.Reply = make(chan model.RunOutcome, 1)
	if !q.Enqueue(ctx, req) {
		return model.RunResult{}, ErrBackpressure
	}

	select {
	case out := <-req.Reply:
		return out.Result, out.Err
	case <-ctx.Done():
		return model.RunResult{}, fmt.Errorf("waiting for run %s: %w", req.ID, ctx.Err())
	}
}

// TopN returns the top n current ratings, optionally within one league.
func (s *Service) TopN(ctx context.Context, n int, league string) ([]types.Entry, error) {
	ratings, err := s.store.TopN(ctx, n, league)
	if err != nil {
		return nil, err
	}
	return types.FromRatings(ratings), nil
}

// Rank returns one team's current rating and overall rank.
func (s *Service) Rank(ctx context.Context, team string) (types.Entry, error) {
	r, err := s.store.Rank(ctx, team)
	if err != nil {
		return types.Entry{}, err
	}
	return types.FromRating(r), nil
}

// History returns the latest ledger rows for a team, or for every team when
// team is empty.
func (s *Service) History(ctx context.Context, team string, limit int) ([]types.HistoryEntry, error) {
	recs, err := s.store.History(ctx, team, limit)
	if err != nil {
		return nil, err
	}
	return types.FromRecords(recs), nil
}

// Snapshot returns the rating table as it stood on date.
func (s *Service) Snapshot(ctx context.Context, date time.Time, league string) ([]types.Entry, error) {
	ratings, err := s.store.RatingsAsOf(ctx, model.Day(date), league)
	if err != nil {
		return nil, err
	}
	return types.FromRatings(ratings), nil
}

// Predict returns the home side's win expectation from current ratings.
// Unrated teams play at the base rating.
func (s *Service) Predict(ctx context.Context, home, away string) (types.Prediction, error) {
	home, away = strings.TrimSpace(home), strings.TrimSpace(away)
	if home == "" || away == "" || home == away {
		return types.Prediction{}, fmt.Errorf("%w: home and away must be two different teams", ErrInvalidArgument)
	}

	var known []model.TeamRating
	for _, team := range []string{home, away} {
		r, err := s.store.Rank(ctx, team)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return types.Prediction{}, err
		default:
			known = append(known, r)
		}
	}

	engine := elo.New(s.engineOpts...)
	engine.Load(known)
	return types.Prediction{
		HomeTeam:        home,
		AwayTeam:        away,
		HomeRating:      engine.Rating(home),
		AwayRating:      engine.Rating(away),
		HomeAdvantage:   engine.HomeAdvantage(),
		ExpectedHomeWin: math.Round(engine.ExpectedScore(home, away)*1000) / 1000,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":        s.started,
		"queueSize":      s.queueSize,
		"updateInterval": s.interval.String(),
	}

	if teams, err := s.store.Count(ctx); err == nil {
		stats["totalTeams"] = teams
		metrics.UpdateTeamsRated(teams)
	}

	if !s.last.StartedAt.IsZero() {
		stats["lastRun"] = types.FromRunResult(s.last)
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		rs := s.runner.Stats()
		stats["runsCompleted"] = rs.Completed
		stats["runsFailed"] = rs.Failed
		stats["runsScheduled"] = rs.Scheduled
		if !rs.LastSuccess.IsZero() {
			stats["lastSuccess"] = rs.LastSuccess.UTC().Format(time.RFC3339)
		}
	}

	return stats
}

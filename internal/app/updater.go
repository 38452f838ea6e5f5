package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/gaffer/internal/adapters/feed"
	"github.com/okian/gaffer/internal/adapters/repository"
	"github.com/okian/gaffer/internal/domain/elo"
	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/logger"
	"github.com/okian/gaffer/pkg/metrics"
)

// Run stage names. They prefix wrapped errors and label stage metrics.
const (
	stageLoadRatings  = "load ratings"
	stageWatermark    = "watermark"
	stageFetchMatches = "fetch matches"
	stageValidate     = "validate"
	stageFold         = "fold"
	stagePersist      = "persist"
)

// Updater performs one incremental rating run: it seeds an engine from the
// store, folds every match newer than the stored watermark and persists the
// new ratings together with their history rows.
type Updater struct {
	store      repository.Store
	feed       feed.Feed
	engineOpts []elo.Option
	logger     logger.Logger
}

// NewUpdater wires an updater over store and source.
func NewUpdater(store repository.Store, source feed.Feed, engineOpts []elo.Option, log logger.Logger) *Updater {
	if log == nil {
		log = logger.Get()
	}
	return &Updater{
		store:      store,
		feed:       source,
		engineOpts: engineOpts,
		logger:     log.Named("updater"),
	}
}

// Run executes a single update. A run that finds no new matches returns a
// result with Processed == 0 and a nil error. On any error nothing is
// written to the store.
func (u *Updater) Run(ctx context.Context, runID string) (model.RunResult, error) {
	res := model.RunResult{RunID: runID, StartedAt: time.Now()}
	log := u.logger.With(logger.String("run_id", runID))

	finish := func(outcome string, err error) (model.RunResult, error) {
		res.FinishedAt = time.Now()
		metrics.RecordRun(outcome, res.Duration())
		return res, err
	}
	fail := func(stage string, err error) (model.RunResult, error) {
		metrics.RecordErrorByComponent("updater", label(stage))
		log.Error(ctx, "run failed", logger.String("stage", stage), logger.Error(err))
		return finish(metrics.OutcomeFailed, fmt.Errorf("%s: %w", stage, err))
	}

	engine := elo.New(u.engineOpts...)

	var stored []model.TeamRating
	err := timed(stageLoadRatings, func() (err error) {
		stored, err = u.store.LoadRatings(ctx)
		return err
	})
	if err != nil {
		return fail(stageLoadRatings, err)
	}
	engine.Load(stored)

	var (
		watermark time.Time
		hasMark   bool
	)
	err = timed(stageWatermark, func() (err error) {
		watermark, hasMark, err = u.store.MaxHistoryDate(ctx)
		return err
	})
	if err != nil {
		return fail(stageWatermark, err)
	}
	var after *time.Time
	if hasMark {
		res.Watermark = watermark
		after = &watermark
	}

	var matches []model.Match
	err = timed(stageFetchMatches, func() (err error) {
		matches, err = u.feed.FetchMatches(ctx, after)
		return err
	})
	if err != nil {
		return fail(stageFetchMatches, err)
	}
	res.Fetched = len(matches)
	metrics.RecordMatchesFetched(len(matches))

	if len(matches) == 0 {
		log.Info(ctx, "ratings are up to date",
			logger.Date("watermark", watermark),
			logger.Int("teams", len(stored)),
		)
		return finish(metrics.OutcomeUpToDate, nil)
	}

	if err := timed(stageValidate, func() error { return engine.ValidateBatch(ctx, matches) }); err != nil {
		return fail(stageValidate, err)
	}

	_ = timed(stageFold, func() error {
		res.Processed = engine.ProcessNewMatches(matches)
		return nil
	})

	history := engine.History()
	ratings := engine.CurrentRatings()
	if err := timed(stagePersist, func() error { return u.store.Persist(ctx, ratings, history) }); err != nil {
		res.Processed = 0
		return fail(stagePersist, err)
	}

	res.Watermark = engine.Latest()
	res.TeamsUpdated = teamsIn(history)
	metrics.RecordMatchesProcessed(res.Processed)
	metrics.RecordHistoryRowsWritten(len(history))
	metrics.UpdateWatermark(res.Watermark)

	log.Info(ctx, "ratings updated",
		logger.Int("processed", res.Processed),
		logger.Int("teams_updated", res.TeamsUpdated),
		logger.Int("teams", len(ratings)),
		logger.Date("watermark", res.Watermark),
	)
	return finish(metrics.OutcomeUpdated, nil)
}

func timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStage(label(stage), time.Since(start))
	return err
}

func label(stage string) string {
	return strings.ReplaceAll(stage, " ", "_")
}

func teamsIn(history []model.MatchRecord) int {
	seen := make(map[string]struct{}, len(history))
	for _, rec := range history {
		seen[rec.HomeTeam] = struct{}{}
		seen[rec.AwayTeam] = struct{}{}
	}
	return len(seen)
}

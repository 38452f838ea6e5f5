package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/gaffer/internal/adapters/feed"
	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/logger"
	"github.com/okian/gaffer/pkg/metrics"
)

// persistLockKey serializes rating writers across processes.
const persistLockKey int64 = 0x6761666665720001

const schemaSQL = `
CREATE TABLE IF NOT EXISTS elo_ratings (
	team            TEXT PRIMARY KEY,
	league          TEXT NOT NULL DEFAULT '',
	elo_rating      DOUBLE PRECISION NOT NULL,
	matches_played  INT NOT NULL DEFAULT 0,
	last_match_date DATE,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_elo_ratings_rating ON elo_ratings(elo_rating DESC, team);
CREATE TABLE IF NOT EXISTS elo_match_history (
	id                BIGSERIAL PRIMARY KEY,
	date              DATE NOT NULL,
	season            TEXT NOT NULL,
	league            TEXT NOT NULL,
	home_team         TEXT NOT NULL,
	away_team         TEXT NOT NULL,
	fthg              INT NOT NULL,
	ftag              INT NOT NULL,
	result            CHAR(1) NOT NULL,
	home_elo_before   DOUBLE PRECISION NOT NULL,
	away_elo_before   DOUBLE PRECISION NOT NULL,
	home_elo_after    DOUBLE PRECISION NOT NULL,
	away_elo_after    DOUBLE PRECISION NOT NULL,
	elo_change_home   DOUBLE PRECISION NOT NULL,
	elo_change_away   DOUBLE PRECISION NOT NULL,
	expected_home_win DOUBLE PRECISION NOT NULL,
	UNIQUE (league, season, date, home_team, away_team)
);
CREATE INDEX IF NOT EXISTS idx_elo_match_history_date ON elo_match_history(date);
CREATE INDEX IF NOT EXISTS idx_elo_match_history_home ON elo_match_history(home_team);
CREATE INDEX IF NOT EXISTS idx_elo_match_history_away ON elo_match_history(away_team);
CREATE TABLE IF NOT EXISTS raw_matches (
	id        BIGSERIAL PRIMARY KEY,
	league    TEXT NOT NULL,
	season    TEXT NOT NULL,
	date      DATE NOT NULL,
	home_team TEXT NOT NULL,
	away_team TEXT NOT NULL,
	fthg      INT,
	ftag      INT,
	ftr       CHAR(1),
	UNIQUE (league, season, date, home_team, away_team)
);
CREATE INDEX IF NOT EXISTS idx_raw_matches_date ON raw_matches(date);
`

const (
	upsertRatingSQL = `
INSERT INTO elo_ratings (team, league, elo_rating, matches_played, last_match_date, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (team) DO UPDATE SET
	league = EXCLUDED.league,
	elo_rating = EXCLUDED.elo_rating,
	matches_played = EXCLUDED.matches_played,
	last_match_date = EXCLUDED.last_match_date,
	updated_at = now()`

	insertHistorySQL = `
INSERT INTO elo_match_history (
	date, season, league, home_team, away_team, fthg, ftag, result,
	home_elo_before, away_elo_before, home_elo_after, away_elo_after,
	elo_change_home, elo_change_away, expected_home_win)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (league, season, date, home_team, away_team) DO NOTHING`

	upsertRawMatchSQL = `
INSERT INTO raw_matches (league, season, date, home_team, away_team, fthg, ftag, ftr)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (league, season, date, home_team, away_team) DO UPDATE SET
	fthg = EXCLUDED.fthg,
	ftag = EXCLUDED.ftag,
	ftr = EXCLUDED.ftr`

	ratingColumns  = `team, league, elo_rating, matches_played, last_match_date`
	historyColumns = `date, season, league, home_team, away_team, fthg, ftag,
	home_elo_before, away_elo_before, home_elo_after, away_elo_after,
	elo_change_home, elo_change_away, expected_home_win`
)

// PostgresStore keeps ratings, the history ledger and raw matches in
// Postgres. It also serves raw matches as a feed.Feed.
type PostgresStore struct {
	pool      *pgxpool.Pool
	chunkSize int
	pageSize  int
	logger    logger.Logger
}

var (
	_ Store     = (*PostgresStore)(nil)
	_ feed.Feed = (*PostgresStore)(nil)
)

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...PostgresOption) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, ErrNoDatabase
	}

	s := &PostgresStore{
		chunkSize: defaultWriteChunkSize,
		pageSize:  defaultFeedPageSize,
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s.pool = pool

	s.logger.Info(ctx, "connected to postgres")
	return s, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// LoadRatings implements Store.
func (s *PostgresStore) LoadRatings(ctx context.Context) ([]model.TeamRating, error) {
	defer observe(backendPostgres, "load_ratings", time.Now())

	rows, err := s.pool.Query(ctx, `SELECT `+ratingColumns+` FROM elo_ratings ORDER BY elo_rating DESC, team`)
	if err != nil {
		return nil, err
	}
	return collectRatings(rows)
}

// MaxHistoryDate implements Store.
func (s *PostgresStore) MaxHistoryDate(ctx context.Context) (time.Time, bool, error) {
	defer observe(backendPostgres, "max_history_date", time.Now())

	var latest *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT max(date) FROM elo_match_history`).Scan(&latest); err != nil {
		return time.Time{}, false, err
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return model.Day(*latest), true, nil
}

// UpsertRatings implements Store.
func (s *PostgresStore) UpsertRatings(ctx context.Context, ratings []model.TeamRating) error {
	defer observe(backendPostgres, "upsert_ratings", time.Now())
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.sendChunks(ctx, tx, len(ratings), func(b *pgx.Batch, i int) { queueRating(b, ratings[i]) })
	})
}

// AppendHistory implements Store.
func (s *PostgresStore) AppendHistory(ctx context.Context, records []model.MatchRecord) error {
	defer observe(backendPostgres, "append_history", time.Now())
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.sendChunks(ctx, tx, len(records), func(b *pgx.Batch, i int) { queueRecord(b, records[i]) })
	})
}

// Persist implements Store. Ratings and history are written in one
// transaction holding an advisory lock, so concurrent writers queue up and a
// failed run leaves no partial rows.
func (s *PostgresStore) Persist(ctx context.Context, ratings []model.TeamRating, records []model.MatchRecord) error {
	defer observe(backendPostgres, "persist", time.Now())

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, persistLockKey); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		if err := s.sendChunks(ctx, tx, len(records), func(b *pgx.Batch, i int) { queueRecord(b, records[i]) }); err != nil {
			return fmt.Errorf("history: %w", err)
		}
		if err := s.sendChunks(ctx, tx, len(ratings), func(b *pgx.Batch, i int) { queueRating(b, ratings[i]) }); err != nil {
			return fmt.Errorf("ratings: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateTeamsRated(n)
	}
	return nil
}

// UpsertRawMatches stores feed matches in raw_matches keyed by match identity.
func (s *PostgresStore) UpsertRawMatches(ctx context.Context, matches []model.Match) error {
	defer observe(backendPostgres, "upsert_raw_matches", time.Now())
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.sendChunks(ctx, tx, len(matches), func(b *pgx.Batch, i int) {
			m := matches[i]
			b.Queue(upsertRawMatchSQL, m.League, m.Season, m.Date, m.HomeTeam, m.AwayTeam, m.HomeGoals, m.AwayGoals, m.Result())
		})
	})
}

// FetchMatches implements feed.Feed over raw_matches, one page at a time.
func (s *PostgresStore) FetchMatches(ctx context.Context, after *time.Time) ([]model.Match, error) {
	defer observe(backendPostgres, "fetch_matches", time.Now())

	var cutoff *time.Time
	if after != nil {
		d := model.Day(*after)
		cutoff = &d
	}

	var out []model.Match
	for offset := 0; ; offset += s.pageSize {
		rows, err := s.pool.Query(ctx, `
			SELECT date, home_team, away_team, fthg, ftag, season, league
			FROM raw_matches
			WHERE $1::date IS NULL OR date > $1::date
			ORDER BY date, league, season, id
			LIMIT $2 OFFSET $3`,
			cutoff, s.pageSize, offset)
		if err != nil {
			return nil, err
		}
		page, err := collectRawMatches(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < s.pageSize {
			break
		}
	}
	return out, nil
}

func collectRawMatches(rows pgx.Rows) ([]model.Match, error) {
	defer rows.Close()
	var out []model.Match
	for rows.Next() {
		var (
			date               time.Time
			home, away         string
			fthg, ftag         *int
			season, leagueName string
		)
		if err := rows.Scan(&date, &home, &away, &fthg, &ftag, &season, &leagueName); err != nil {
			return nil, err
		}
		row := feed.Row{
			"date": date, "home_team": home, "away_team": away,
			"season": season, "league": leagueName,
		}
		// NULL scores stay absent so Normalize reports them.
		if fthg != nil {
			row["fthg"] = *fthg
		}
		if ftag != nil {
			row["ftag"] = *ftag
		}
		m, err := feed.Normalize(row)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TopN implements Store.
func (s *PostgresStore) TopN(ctx context.Context, n int, league string) ([]model.TeamRating, error) {
	defer observe(backendPostgres, "top_n", time.Now())

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+ratingColumns+`
		FROM elo_ratings
		WHERE $2 = '' OR league = $2
		ORDER BY elo_rating DESC, team
		LIMIT $1`,
		n, league)
	if err != nil {
		return nil, err
	}
	return collectRatings(rows)
}

// Rank implements Store.
func (s *PostgresStore) Rank(ctx context.Context, team string) (model.TeamRating, error) {
	defer observe(backendPostgres, "rank", time.Now())

	var (
		r       model.TeamRating
		lastDay *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT `+ratingColumns+`, rnk FROM (
			SELECT `+ratingColumns+`, ROW_NUMBER() OVER (ORDER BY elo_rating DESC, team) AS rnk
			FROM elo_ratings
		) ranked
		WHERE team = $1`,
		team).Scan(&r.Team, &r.League, &r.Rating, &r.MatchesPlayed, &lastDay, &r.Rank)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.RecordErrorByComponent("repository", "not_found")
			return model.TeamRating{}, ErrNotFound
		}
		return model.TeamRating{}, err
	}
	if lastDay != nil {
		r.LastMatchDate = model.Day(*lastDay)
	}
	return r, nil
}

// History implements Store.
func (s *PostgresStore) History(ctx context.Context, team string, limit int) ([]model.MatchRecord, error) {
	defer observe(backendPostgres, "history", time.Now())

	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+historyColumns+`
		FROM elo_match_history
		WHERE $1 = '' OR home_team = $1 OR away_team = $1
		ORDER BY date DESC, id DESC
		LIMIT $2`,
		team, limit)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// RatingsAsOf implements Store.
func (s *PostgresStore) RatingsAsOf(ctx context.Context, date time.Time, league string) ([]model.TeamRating, error) {
	defer observe(backendPostgres, "ratings_as_of", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT `+historyColumns+`
		FROM elo_match_history
		WHERE date <= $1
		ORDER BY date, id`,
		model.Day(date))
	if err != nil {
		return nil, err
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	return ratingsFromLedger(records, date, league), nil
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM elo_ratings`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// sendChunks queues n statements in batches of chunkSize.
func (s *PostgresStore) sendChunks(ctx context.Context, tx pgx.Tx, n int, queue func(*pgx.Batch, int)) error {
	for start := 0; start < n; start += s.chunkSize {
		end := min(start+s.chunkSize, n)
		b := &pgx.Batch{}
		for i := start; i < end; i++ {
			queue(b, i)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return err
		}
		s.logger.Debug(ctx, "wrote batch", logger.Int("from", start), logger.Int("to", end))
	}
	return nil
}

func queueRating(b *pgx.Batch, r model.TeamRating) {
	var last *time.Time
	if !r.LastMatchDate.IsZero() {
		d := model.Day(r.LastMatchDate)
		last = &d
	}
	b.Queue(upsertRatingSQL, r.Team, r.League, r.Rating, r.MatchesPlayed, last)
}

func queueRecord(b *pgx.Batch, rec model.MatchRecord) {
	b.Queue(insertHistorySQL,
		model.Day(rec.Date), rec.Season, rec.League, rec.HomeTeam, rec.AwayTeam,
		rec.HomeGoals, rec.AwayGoals, rec.Result(),
		rec.HomeRatingBefore, rec.AwayRatingBefore, rec.HomeRatingAfter, rec.AwayRatingAfter,
		rec.HomeDelta, rec.AwayDelta, rec.ExpectedHomeWin)
}

func collectRatings(rows pgx.Rows) ([]model.TeamRating, error) {
	defer rows.Close()
	var out []model.TeamRating
	for rows.Next() {
		var (
			r       model.TeamRating
			lastDay *time.Time
		)
		if err := rows.Scan(&r.Team, &r.League, &r.Rating, &r.MatchesPlayed, &lastDay); err != nil {
			return nil, err
		}
		if lastDay != nil {
			r.LastMatchDate = model.Day(*lastDay)
		}
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectRecords(rows pgx.Rows) ([]model.MatchRecord, error) {
	defer rows.Close()
	var out []model.MatchRecord
	for rows.Next() {
		var rec model.MatchRecord
		if err := rows.Scan(
			&rec.Date, &rec.Season, &rec.League, &rec.HomeTeam, &rec.AwayTeam, &rec.HomeGoals, &rec.AwayGoals,
			&rec.HomeRatingBefore, &rec.AwayRatingBefore, &rec.HomeRatingAfter, &rec.AwayRatingAfter,
			&rec.HomeDelta, &rec.AwayDelta, &rec.ExpectedHomeWin,
		); err != nil {
			return nil, err
		}
		rec.Date = model.Day(rec.Date)
		out = append(out, rec)
	}
	return out, rows.Err()
}

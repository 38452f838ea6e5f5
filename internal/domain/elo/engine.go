// Package elo implements the incremental football ELO rating engine.
//
// An Engine owns the rating state of one run: it is seeded from stored
// ratings with Load, folds matches in chronological order and exposes the
// resulting ratings and the history produced since it was created.
// It is not safe for concurrent use.
package elo

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/okian/gaffer/internal/domain/dedupe"
	"github.com/okian/gaffer/internal/domain/model"
)

// Default engine configuration constants.
const (
	defaultKStable         = 20
	defaultKVolatile       = 40
	defaultVolatileMatches = 30
	defaultHomeAdvantage   = 40
	defaultBaseRating      = 1500

	logisticScale = 400
)

type teamState struct {
	rating   float64
	matches  int
	league   string
	lastDate time.Time
}

// Engine holds ratings and the history accumulated since construction.
type Engine struct {
	kStable         float64
	kVolatile       float64
	volatileMatches int
	homeAdvantage   float64
	baseRating      float64
	strict          bool

	teams   map[string]*teamState
	history []model.MatchRecord
	latest  time.Time
}

// New creates an engine with default configuration overridden by opts.
func New(opts ...Option) *Engine {
	e := &Engine{
		kStable:         defaultKStable,
		kVolatile:       defaultKVolatile,
		volatileMatches: defaultVolatileMatches,
		homeAdvantage:   defaultHomeAdvantage,
		baseRating:      defaultBaseRating,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.teams = make(map[string]*teamState)
	return e
}

// Load seeds the engine with stored ratings without replaying any match.
// Teams already known to the engine are overwritten.
func (e *Engine) Load(ratings []model.TeamRating) {
	for _, r := range ratings {
		e.teams[r.Team] = &teamState{
			rating:   r.Rating,
			matches:  r.MatchesPlayed,
			league:   r.League,
			lastDate: r.LastMatchDate,
		}
		if r.LastMatchDate.After(e.latest) {
			e.latest = r.LastMatchDate
		}
	}
}

// Rating returns the team's rating, or the base rating for an unseen team.
func (e *Engine) Rating(team string) float64 {
	if st, ok := e.teams[team]; ok {
		return st.rating
	}
	return e.baseRating
}

// MatchesPlayed returns how many matches the engine has on record for team.
func (e *Engine) MatchesPlayed(team string) int {
	if st, ok := e.teams[team]; ok {
		return st.matches
	}
	return 0
}

// KFactor returns the volatile K-factor while the team has played fewer than
// the volatile match count, the stable one afterwards.
func (e *Engine) KFactor(team string) float64 {
	if e.MatchesPlayed(team) < e.volatileMatches {
		return e.kVolatile
	}
	return e.kStable
}

// ExpectedScore returns the home side's win expectation. The home advantage
// only shifts the expectation, never the stored rating.
func (e *Engine) ExpectedScore(home, away string) float64 {
	return expected(e.Rating(home), e.Rating(away), e.homeAdvantage)
}

// HomeAdvantage returns the rating points added to the home side.
func (e *Engine) HomeAdvantage() float64 {
	return e.homeAdvantage
}

func expected(rHome, rAway, homeAdvantage float64) float64 {
	return 1 / (1 + math.Pow(10, (rAway-(rHome+homeAdvantage))/logisticScale))
}

// MarginMultiplier scales a rating change by the goal difference.
func MarginMultiplier(goalDiff int) float64 {
	switch {
	case goalDiff <= 1:
		// draws keep the unit multiplier
		return 1
	case goalDiff == 2:
		return 1.5
	default:
		return float64(11+goalDiff) / 8
	}
}

// ProcessMatch folds one match into the ratings and appends its record to
// the history. It accepts any score and never fails.
func (e *Engine) ProcessMatch(m model.Match) model.MatchRecord {
	rHome, rAway := e.Rating(m.HomeTeam), e.Rating(m.AwayTeam)
	kHome, kAway := e.KFactor(m.HomeTeam), e.KFactor(m.AwayTeam)

	actual := 0.5
	switch {
	case m.HomeGoals > m.AwayGoals:
		actual = 1
	case m.HomeGoals < m.AwayGoals:
		actual = 0
	}
	diff := m.HomeGoals - m.AwayGoals
	if diff < 0 {
		diff = -diff
	}

	exp := expected(rHome, rAway, e.homeAdvantage)
	g := MarginMultiplier(diff)

	deltaHome := kHome * g * (actual - exp)
	deltaAway := kAway * g * ((1 - actual) - (1 - exp))

	e.apply(m.HomeTeam, rHome+deltaHome, m)
	e.apply(m.AwayTeam, rAway+deltaAway, m)
	if m.Date.After(e.latest) {
		e.latest = m.Date
	}

	rec := model.MatchRecord{
		Match:            m,
		HomeRatingBefore: round(rHome, 2),
		AwayRatingBefore: round(rAway, 2),
		HomeRatingAfter:  round(rHome+deltaHome, 2),
		AwayRatingAfter:  round(rAway+deltaAway, 2),
		ExpectedHomeWin:  round(exp, 3),
		HomeDelta:        round(deltaHome, 2),
		AwayDelta:        round(deltaAway, 2),
	}
	e.history = append(e.history, rec)
	return rec
}

func (e *Engine) apply(team string, rating float64, m model.Match) {
	st, ok := e.teams[team]
	if !ok {
		st = &teamState{}
		e.teams[team] = st
	}
	st.rating = rating
	st.matches++
	st.league = m.League
	if m.Date.After(st.lastDate) {
		st.lastDate = m.Date
	}
}

// ProcessLeagueSeason replays one league season: every match is stamped with
// season and league, sorted by date and folded. It returns the number of
// matches folded.
func (e *Engine) ProcessLeagueSeason(matches []model.Match, season, league string) int {
	stamped := make([]model.Match, len(matches))
	for i, m := range matches {
		m.Season = season
		m.League = league
		stamped[i] = m
	}
	return e.ProcessNewMatches(stamped)
}

// ProcessNewMatches folds a batch in date order. Matches on the same date
// keep their input order. It returns the number of matches folded.
func (e *Engine) ProcessNewMatches(matches []model.Match) int {
	for _, m := range SortByDate(matches) {
		e.ProcessMatch(m)
	}
	return len(matches)
}

// SortByDate returns a copy of matches stably sorted by date.
func SortByDate(matches []model.Match) []model.Match {
	sorted := slices.Clone(matches)
	slices.SortStableFunc(sorted, func(a, b model.Match) int {
		return a.Date.Compare(b.Date)
	})
	return sorted
}

// ValidateBatch checks a batch before it is folded. Invalid matches are
// always rejected. In strict mode it also rejects matches older than the
// latest match already folded or loaded, and repeated match identities.
func (e *Engine) ValidateBatch(ctx context.Context, matches []model.Match) error {
	for _, m := range matches {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w %s: %w", ErrInvalidMatch, m.Key(), err)
		}
	}
	if !e.strict {
		return nil
	}

	seen := dedupe.NewInMemoryDeduper()
	for _, m := range matches {
		if m.Date.Before(e.latest) {
			return fmt.Errorf("%w: %s before %s", ErrOutOfOrder, m.Key(), e.latest.Format(time.DateOnly))
		}
		if seen.SeenAndRecord(ctx, m.Key().String()) {
			return fmt.Errorf("%w: %s", ErrDuplicateMatch, m.Key())
		}
	}
	return nil
}

// CurrentRatings exports every known team sorted by rating, highest first.
// Equal ratings are ordered by team name. Ranks start at 1 and ratings are
// rounded to 2 decimals.
func (e *Engine) CurrentRatings() []model.TeamRating {
	out := make([]model.TeamRating, 0, len(e.teams))
	for team, st := range e.teams {
		out = append(out, model.TeamRating{
			Team:          team,
			Rating:        round(st.rating, 2),
			MatchesPlayed: st.matches,
			League:        st.league,
			LastMatchDate: st.lastDate,
		})
	}
	slices.SortFunc(out, func(a, b model.TeamRating) int {
		if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
			return c
		}
		return cmp.Compare(a.Team, b.Team)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// History returns a copy of the records produced by this engine.
func (e *Engine) History() []model.MatchRecord {
	return slices.Clone(e.history)
}

// Latest returns the most recent match date the engine has folded or loaded.
func (e *Engine) Latest() time.Time {
	return e.latest
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

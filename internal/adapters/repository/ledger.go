package repository

import (
	"cmp"
	"slices"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/metrics"
)

// ratingsFromLedger rebuilds each team's rating from ledger rows on or before
// asOf. Rows must be in fold order. matches_played counts ledger rows only.
func ratingsFromLedger(records []model.MatchRecord, asOf time.Time, league string) []model.TeamRating {
	cutoff := model.Day(asOf)
	state := make(map[string]*model.TeamRating)
	touch := func(team string, rating float64, rec model.MatchRecord) {
		r, ok := state[team]
		if !ok {
			r = &model.TeamRating{Team: team}
			state[team] = r
		}
		r.Rating = rating
		r.MatchesPlayed++
		r.League = rec.League
		r.LastMatchDate = rec.Date
	}
	for _, rec := range records {
		if rec.Date.After(cutoff) {
			continue
		}
		touch(rec.HomeTeam, rec.HomeRatingAfter, rec)
		touch(rec.AwayTeam, rec.AwayRatingAfter, rec)
	}

	out := make([]model.TeamRating, 0, len(state))
	for _, r := range state {
		if league != "" && r.League != league {
			continue
		}
		out = append(out, *r)
	}
	rankRatings(out)
	return out
}

// rankRatings sorts by rating desc, team asc and assigns ranks from 1.
func rankRatings(ratings []model.TeamRating) {
	slices.SortFunc(ratings, func(a, b model.TeamRating) int {
		if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
			return c
		}
		return cmp.Compare(a.Team, b.Team)
	})
	for i := range ratings {
		ratings[i].Rank = i + 1
	}
}

func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, time.Since(start))
}

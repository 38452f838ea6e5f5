// Package types contains the JSON shapes served by the API.
package types

import (
	"time"

	"github.com/okian/gaffer/internal/domain/model"
)

// Entry is one row of a rating table.
type Entry struct {
	Rank          int     `json:"rank"`
	Team          string  `json:"team"`
	Rating        float64 `json:"rating"`
	MatchesPlayed int     `json:"matches_played"`
	League        string  `json:"league,omitempty"`
	LastMatchDate string  `json:"last_match_date,omitempty"`
}

// HistoryEntry is one ledger row.
type HistoryEntry struct {
	Date             string  `json:"date"`
	Season           string  `json:"season"`
	League           string  `json:"league"`
	HomeTeam         string  `json:"home_team"`
	AwayTeam         string  `json:"away_team"`
	HomeGoals        int     `json:"fthg"`
	AwayGoals        int     `json:"ftag"`
	Result           string  `json:"result"`
	HomeRatingBefore float64 `json:"home_elo_before"`
	AwayRatingBefore float64 `json:"away_elo_before"`
	HomeRatingAfter  float64 `json:"home_elo_after"`
	AwayRatingAfter  float64 `json:"away_elo_after"`
	HomeDelta        float64 `json:"elo_change_home"`
	AwayDelta        float64 `json:"elo_change_away"`
	ExpectedHomeWin  float64 `json:"expected_home_win"`
}

// Prediction is the pre-match expectation between two teams.
type Prediction struct {
	HomeTeam        string  `json:"home_team"`
	AwayTeam        string  `json:"away_team"`
	HomeRating      float64 `json:"home_rating"`
	AwayRating      float64 `json:"away_rating"`
	HomeAdvantage   float64 `json:"home_advantage"`
	ExpectedHomeWin float64 `json:"expected_home_win"`
}

// RunSummary reports the outcome of one rating run.
type RunSummary struct {
	RunID        string  `json:"run_id"`
	UpToDate     bool    `json:"up_to_date"`
	Watermark    string  `json:"watermark,omitempty"`
	Fetched      int     `json:"fetched"`
	Processed    int     `json:"processed"`
	TeamsUpdated int     `json:"teams_updated"`
	DurationMs   float64 `json:"duration_ms"`
}

// FromRating converts a stored rating.
func FromRating(r model.TeamRating) Entry {
	return Entry{
		Rank:          r.Rank,
		Team:          r.Team,
		Rating:        r.Rating,
		MatchesPlayed: r.MatchesPlayed,
		League:        r.League,
		LastMatchDate: date(r.LastMatchDate),
	}
}

// FromRatings converts a rating table.
func FromRatings(rs []model.TeamRating) []Entry {
	out := make([]Entry, len(rs))
	for i, r := range rs {
		out[i] = FromRating(r)
	}
	return out
}

// FromRecords converts ledger rows.
func FromRecords(recs []model.MatchRecord) []HistoryEntry {
	out := make([]HistoryEntry, len(recs))
	for i, rec := range recs {
		out[i] = HistoryEntry{
			Date:             date(rec.Date),
			Season:           rec.Season,
			League:           rec.League,
			HomeTeam:         rec.HomeTeam,
			AwayTeam:         rec.AwayTeam,
			HomeGoals:        rec.HomeGoals,
			AwayGoals:        rec.AwayGoals,
			Result:           rec.Result(),
			HomeRatingBefore: rec.HomeRatingBefore,
			AwayRatingBefore: rec.AwayRatingBefore,
			HomeRatingAfter:  rec.HomeRatingAfter,
			AwayRatingAfter:  rec.AwayRatingAfter,
			HomeDelta:        rec.HomeDelta,
			AwayDelta:        rec.AwayDelta,
			ExpectedHomeWin:  rec.ExpectedHomeWin,
		}
	}
	return out
}

// FromRunResult converts a run result.
func FromRunResult(r model.RunResult) RunSummary {
	return RunSummary{
		RunID:        r.RunID,
		UpToDate:     r.UpToDate(),
		Watermark:    date(r.Watermark),
		Fetched:      r.Fetched,
		Processed:    r.Processed,
		TeamsUpdated: r.TeamsUpdated,
		DurationMs:   float64(r.Duration().Microseconds()) / 1000,
	}
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Match outcome codes as stored in the history ledger.
const (
	ResultHome = "H"
	ResultDraw = "D"
	ResultAway = "A"
)

// Validation errors for Match.
var (
	ErrMissingTeam   = errors.New("missing team name")
	ErrMissingDate   = errors.New("missing match date")
	ErrNegativeGoals = errors.New("negative goal count")
)

// Match is the canonical full-time fact for one fixture. Every feed schema
// is normalized into this shape before it reaches the rating engine.
type Match struct {
	Date      time.Time // day precision, UTC
	HomeTeam  string
	AwayTeam  string
	HomeGoals int
	AwayGoals int
	Season    string // e.g. "2526"
	League    string // e.g. "serie_a"
}

// MatchKey is the identity of a match in the history ledger.
type MatchKey struct {
	League   string
	Season   string
	Date     string // YYYY-MM-DD
	HomeTeam string
	AwayTeam string
}

// String renders the key in a stable, log-friendly form.
func (k MatchKey) String() string {
	return strings.Join([]string{k.League, k.Season, k.Date, k.HomeTeam, k.AwayTeam}, "|")
}

// Key returns the ledger identity of the match.
func (m Match) Key() MatchKey {
	return MatchKey{
		League:   m.League,
		Season:   m.Season,
		Date:     m.Date.Format(time.DateOnly),
		HomeTeam: m.HomeTeam,
		AwayTeam: m.AwayTeam,
	}
}

// Result returns H, D or A from the home side's point of view.
func (m Match) Result() string {
	switch {
	case m.HomeGoals > m.AwayGoals:
		return ResultHome
	case m.HomeGoals < m.AwayGoals:
		return ResultAway
	default:
		return ResultDraw
	}
}

// Validate reports whether the match can be folded into ratings.
func (m Match) Validate() error {
	switch {
	case strings.TrimSpace(m.HomeTeam) == "" || strings.TrimSpace(m.AwayTeam) == "":
		return ErrMissingTeam
	case m.Date.IsZero():
		return ErrMissingDate
	case m.HomeGoals < 0 || m.AwayGoals < 0:
		return fmt.Errorf("%w: %d-%d", ErrNegativeGoals, m.HomeGoals, m.AwayGoals)
	}
	return nil
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

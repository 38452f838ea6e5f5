// Package repository defines the rating store interface and its backends.
package repository

import (
	"context"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
)

// Store persists team ratings and the match history ledger.
//
// Writers are expected to be serialized by the caller; Persist is the only
// write used by an incremental run.
type Store interface {
	// LoadRatings returns every stored rating.
	LoadRatings(ctx context.Context) ([]model.TeamRating, error)
	// MaxHistoryDate returns the latest match date in the ledger. ok is false
	// when the ledger is empty.
	MaxHistoryDate(ctx context.Context) (date time.Time, ok bool, err error)

	// UpsertRatings overwrites ratings keyed by team.
	UpsertRatings(ctx context.Context, ratings []model.TeamRating) error
	// AppendHistory adds ledger rows; rows whose match key already exists
	// are left untouched.
	AppendHistory(ctx context.Context, records []model.MatchRecord) error
	// Persist writes the ratings and history of one run atomically.
	Persist(ctx context.Context, ratings []model.TeamRating, records []model.MatchRecord) error

	// TopN returns up to n ratings ordered by rating desc, team asc. A
	// non-empty league restricts the list, and ranks are then league ranks.
	// Returns ErrInvalidLimit if n < 1.
	TopN(ctx context.Context, n int, league string) ([]model.TeamRating, error)
	// Rank returns one team's overall rating and rank.
	// Returns ErrNotFound if the team is unknown.
	Rank(ctx context.Context, team string) (model.TeamRating, error)
	// History returns the team's most recent ledger rows, newest first.
	History(ctx context.Context, team string, limit int) ([]model.MatchRecord, error)
	// RatingsAsOf rebuilds the table as it stood after the last match on or
	// before date, from the ledger.
	RatingsAsOf(ctx context.Context, date time.Time, league string) ([]model.TeamRating, error)

	// Count returns the number of rated teams.
	Count(ctx context.Context) (int, error)

	Close()
}

// Backend labels used for store latency metrics.
const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
)

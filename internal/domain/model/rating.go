package model

import (
	"time"

	"github.com/google/uuid"
)

// TeamRating is the materialized rating state of one team.
type TeamRating struct {
	Rank          int
	Team          string
	Rating        float64
	MatchesPlayed int
	League        string    // last league the team played in
	LastMatchDate time.Time // zero when unknown
}

// MatchRecord is one immutable row of the history ledger: the match and the
// effect it had on both ratings.
type MatchRecord struct {
	Match

	HomeRatingBefore float64
	AwayRatingBefore float64
	HomeRatingAfter  float64
	AwayRatingAfter  float64
	ExpectedHomeWin  float64
	HomeDelta        float64
	AwayDelta        float64
}

// RunRequest asks the runner to perform one incremental update.
type RunRequest struct {
	ID         string
	Reason     string // "startup", "schedule", "api", "cli"
	EnqueuedAt time.Time
	// Reply receives the outcome when non-nil. It must be buffered.
	Reply chan RunOutcome
}

// NewRunRequest builds a request with a fresh ID.
func NewRunRequest(reason string) RunRequest {
	return RunRequest{ID: uuid.NewString(), Reason: reason, EnqueuedAt: time.Now()}
}

// RunOutcome pairs a result with the error that ended the run, if any.
type RunOutcome struct {
	Result RunResult
	Err    error
}

// RunResult summarizes one incremental update. Processed == 0 with a nil
// error means the ratings were already up to date.
type RunResult struct {
	RunID        string
	Watermark    time.Time // zero when no history existed
	Fetched      int
	Processed    int
	TeamsUpdated int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// UpToDate reports whether the run found nothing new.
func (r RunResult) UpToDate() bool { return r.Processed == 0 }

// Duration returns the run wall time.
func (r RunResult) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

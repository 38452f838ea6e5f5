// Package smoke checks a running rating service end to end over HTTP.
package smoke

import (
	"time"

	"github.com/okian/gaffer/internal/domain/types"
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL string        // Base URL of the service
	TopN    int           // Rows to fetch from the rating table
	Workers int           // Concurrent per-team lookups
	Timeout time.Duration // HTTP request timeout
	Home    string        // Home side for the prediction check; defaults to the table leader
	Away    string        // Away side for the prediction check; defaults to the last row
	Verbose bool          // Log every team lookup
}

// Response shapes served by the API.
type (
	Entry      = types.Entry
	RunSummary = types.RunSummary
	Prediction = types.Prediction
)

// Stats holds smoke run statistics.
type Stats struct {
	MatchesProcessed int
	TeamsListed      int
	TeamsChecked     int
	LookupsFailed    int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

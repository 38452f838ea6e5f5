package smoke

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/gaffer/pkg/logger"
)

const displayRows = 10

// ErrNotUpToDate is returned when an update directly after another one still
// finds matches to fold.
var ErrNotUpToDate = errors.New("repeated update was not a no-op")

// Run executes the complete smoke check against config.BaseURL.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	applyDefaults(config)
	stats := &Stats{
		StartTime: time.Now(),
	}
	log := logger.Get().Named("smoke")
	client := newHTTPClient(config.BaseURL, config.Timeout)

	log.Info(ctx, "starting smoke check",
		logger.String("baseURL", config.BaseURL),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Int("topN", config.TopN))

	// Step 1: Check service health
	if err := client.Get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "service is healthy")

	// Step 2: Bring ratings up to date
	var first RunSummary
	if err := client.Post(ctx, "/update?wait=true", http.StatusOK, &first); err != nil {
		return stats, fmt.Errorf("update failed: %w", err)
	}
	stats.MatchesProcessed = first.Processed
	log.Info(ctx, "update finished",
		logger.String("runID", first.RunID),
		logger.Int("processed", first.Processed),
		logger.String("watermark", first.Watermark))

	// Step 3: A second update has nothing left to fold
	var second RunSummary
	if err := client.Post(ctx, "/update?wait=true", http.StatusOK, &second); err != nil {
		return stats, fmt.Errorf("repeated update failed: %w", err)
	}
	if !second.UpToDate || second.Processed != 0 {
		return stats, fmt.Errorf("%w: processed %d", ErrNotUpToDate, second.Processed)
	}

	// Step 4: Read and check the table
	table, err := fetchTable(ctx, config, client)
	if err != nil {
		return stats, fmt.Errorf("ratings retrieval failed: %w", err)
	}
	stats.TeamsListed = len(table)
	if err := verifyTable(table); err != nil {
		return stats, fmt.Errorf("rating table check failed: %w", err)
	}

	// Step 5: Per-team lookups agree with the table
	ranks, err := fetchRanks(ctx, config, client, table, stats)
	if err != nil {
		return stats, fmt.Errorf("rank retrieval failed: %w", err)
	}
	if err := verifyRanks(table, ranks); err != nil {
		return stats, fmt.Errorf("rank consistency check failed: %w", err)
	}

	// Step 6: Predict a fixture between rated teams
	if err := checkPrediction(ctx, config, client, table); err != nil {
		return stats, fmt.Errorf("prediction check failed: %w", err)
	}

	// Step 7: Stats endpoint answers
	if err := client.Get(ctx, "/stats", nil); err != nil {
		return stats, fmt.Errorf("stats retrieval failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayTop(table, displayRows)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "smoke check passed")
	return stats, nil
}

func applyDefaults(config *Config) {
	if config.TopN < 1 {
		config.TopN = DefaultTopN
	}
	if config.Workers < 1 {
		config.Workers = DefaultWorkers
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
}

// fetchTable reads the top of the rating table. A server capping list sizes
// below TopN rejects the request; the table is then read at the server's
// default size, which is its cap.
func fetchTable(ctx context.Context, config *Config, client *HTTPClient) ([]Entry, error) {
	var table []Entry
	err := client.Get(ctx, "/ratings?limit="+strconv.Itoa(config.TopN), &table)
	if !hasStatus(err, http.StatusBadRequest) {
		return table, err
	}

	logger.Get().Named("smoke").Warn(ctx, "limit rejected; reading the server's default page",
		logger.Int("topN", config.TopN), logger.Error(err))
	table = nil
	if err := client.Get(ctx, "/ratings", &table); err != nil {
		return nil, err
	}
	if len(table) > config.TopN {
		table = table[:config.TopN]
	}
	return table, nil
}

// checkPrediction asks for Home v Away, falling back to the table's first and
// last rows.
func checkPrediction(ctx context.Context, config *Config, client *HTTPClient, table []Entry) error {
	home, away := table[0], table[len(table)-1]
	if config.Home != "" {
		if err := client.Get(ctx, teamPath(config.Home), &home); err != nil {
			return err
		}
	}
	if config.Away != "" {
		if err := client.Get(ctx, teamPath(config.Away), &away); err != nil {
			return err
		}
	}
	if home.Team == away.Team {
		logger.Get().Named("smoke").Warn(ctx, "skipping prediction check; need two teams",
			logger.String("team", home.Team))
		return nil
	}

	var p Prediction
	if err := client.Get(ctx, predictPath(home.Team, away.Team), &p); err != nil {
		return err
	}
	return verifyPrediction(p, home, away)
}

// displayFinalStats logs the final statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Named("smoke").Info(ctx, "final statistics",
		logger.Int("matchesProcessed", stats.MatchesProcessed),
		logger.Int("teamsListed", stats.TeamsListed),
		logger.Int("teamsChecked", stats.TeamsChecked),
		logger.Int("lookupsFailed", stats.LookupsFailed),
		logger.Duration("duration", stats.Duration))
}

package smoke

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/gaffer/pkg/logger"
)

// fetchRanks looks every listed team up through /ratings/{team} concurrently.
// Results keep the order of table.
func fetchRanks(ctx context.Context, config *Config, client *HTTPClient, table []Entry, stats *Stats) ([]Entry, error) {
	log := logger.Get().Named("smoke")
	log.Info(ctx, "fetching team ranks",
		logger.Int("teams", len(table)),
		logger.Int("workers", config.Workers))

	ranks := make([]Entry, len(table))
	var (
		retrieved int64
		failed    int64
		firstErr  error
		errOnce   sync.Once
	)

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				if ctx.Err() != nil {
					return
				}
				team := table[index].Team
				var entry Entry
				if err := client.Get(ctx, teamPath(team), &entry); err != nil {
					atomic.AddInt64(&failed, 1)
					errOnce.Do(func() { firstErr = fmt.Errorf("rank of %q: %w", team, err) })
					continue
				}
				ranks[index] = entry
				atomic.AddInt64(&retrieved, 1)
				if config.Verbose {
					log.Info(ctx, "team rank",
						logger.String("team", entry.Team),
						logger.Int("rank", entry.Rank),
						logger.Float64("rating", entry.Rating))
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range table {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.TeamsChecked = int(atomic.LoadInt64(&retrieved))
	stats.LookupsFailed = int(atomic.LoadInt64(&failed))

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ranks, nil
}

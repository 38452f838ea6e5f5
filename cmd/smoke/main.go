package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/gaffer/internal/smoke"
)

const defaultCheckTimeout = 10 * time.Minute

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		topN    = flag.Int("top", smoke.DefaultTopN, "Rows to fetch from /ratings")
		workers = flag.Int("workers", smoke.DefaultWorkers, "Concurrent per-team lookups")
		timeout = flag.Duration("timeout", smoke.DefaultTimeout, "HTTP request timeout")
		home    = flag.String("home", "", "Home team for the prediction check")
		away    = flag.String("away", "", "Away team for the prediction check")
		logFile = flag.String("log", "", "Also write output to this file")
		verbose = flag.Bool("verbose", false, "Log every team lookup")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoke.ShowHelp(os.Stdout)
		return
	}

	if err := smoke.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultCheckTimeout)
	defer cancel()

	config := &smoke.Config{
		BaseURL: *baseURL,
		TopN:    *topN,
		Workers: *workers,
		Timeout: *timeout,
		Home:    *home,
		Away:    *away,
		Verbose: *verbose,
	}

	if _, err := smoke.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Smoke check failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}

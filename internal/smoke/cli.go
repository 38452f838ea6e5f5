package smoke

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/okian/gaffer/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends smoke output to stdout and, when logFile is set, to that
// file as well.
func SetupLogging(logFile string) error {
	out := io.Writer(os.Stdout)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission) //nolint:gosec // operator-supplied path
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	if err := logger.InitWithFormat(out, "text"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return nil
}

// ShowHelp prints usage information for the smoke tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Gaffer Smoke Check
==================

Runs an update against a live rating service and checks what it serves.

Usage:
  go run ./cmd/smoke [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -top int
        Rows to fetch from /ratings (default 100)
  -workers int
        Concurrent per-team lookups (default 4)
  -timeout duration
        HTTP request timeout; also bounds a synchronous update (default 2m)
  -home string
        Home team for the prediction check (default: table leader)
  -away string
        Away team for the prediction check (default: last listed team)
  -log string
        Also write output to this file
  -verbose
        Log every team lookup
  -help
        Show this help message

Examples:
  go run ./cmd/smoke -url http://localhost:8080 -top 20
  go run ./cmd/smoke -home Arsenal -away Chelsea -verbose
`)
}

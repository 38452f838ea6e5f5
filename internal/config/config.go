// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's sentinel errors.
package config

import (
	"fmt"
	"regexp"
	"slices"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatabaseURL selects the Postgres store when set; otherwise ratings
	// live in memory.
	DatabaseURL string `koanf:"database_url"`

	// CSVDir is the match cache, laid out as <league>/<season>.csv.
	CSVDir string `koanf:"csv_dir"`

	// KFactorStable and KFactorVolatile are the update weights for teams
	// past and within their first VolatileMatchCount matches.
	KFactorStable      float64 `koanf:"k_factor_stable"`
	KFactorVolatile    float64 `koanf:"k_factor_volatile"`
	VolatileMatchCount int     `koanf:"volatile_match_count"`

	// HomeAdvantage is added to the home rating when computing expectations.
	HomeAdvantage float64 `koanf:"home_advantage"`

	// BaseRating seeds teams without history.
	BaseRating float64 `koanf:"base_rating"`

	// StrictOrdering rejects batches that reach back before the latest
	// folded match or repeat a match.
	StrictOrdering bool `koanf:"strict_ordering"`

	// QueueSize bounds pending update requests.
	QueueSize int `koanf:"queue_size"`

	// UpdateInterval schedules periodic runs. Zero disables scheduling.
	UpdateInterval time.Duration `koanf:"update_interval"`

	// RunOnStart queues a run when the server starts.
	RunOnStart bool `koanf:"run_on_start"`

	// MaxRatingsLimit caps ?limit on list endpoints.
	MaxRatingsLimit int `koanf:"max_ratings_limit"`

	// WriteChunkSize and FeedPageSize tune Postgres batching.
	WriteChunkSize int `koanf:"write_chunk_size"`
	FeedPageSize   int `koanf:"feed_page_size"`

	// MetricsNamespace and MetricsSubsystem prefix every exported metric.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsBuckets overrides the latency histogram buckets, in seconds.
	// From the environment it is a comma-separated list.
	MetricsBuckets []float64 `koanf:"metrics_buckets"`

	// MetricsLabels are constant labels added to every metric. Set them in
	// the YAML file.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		CSVDir:             "data",
		KFactorStable:      20,
		KFactorVolatile:    40,
		VolatileMatchCount: 30,
		HomeAdvantage:      40,
		BaseRating:         1500,
		QueueSize:          4,
		MaxRatingsLimit:    500,
		WriteChunkSize:     500,
		FeedPageSize:       1000,
		MetricsNamespace:   "gaffer",
		MetricsSubsystem:   "elo",
	}
}

var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"text", "json"}

	// Prometheus metric and label name syntax.
	metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !slices.Contains(logLevels, c.LogLevel):
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	case !slices.Contains(logFormats, c.LogFormat):
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.KFactorStable <= 0 || c.KFactorVolatile <= 0:
		return fmt.Errorf("%w: k factors must be positive", ErrInvalidConfig)
	case c.VolatileMatchCount < 0:
		return fmt.Errorf("%w: volatile_match_count must not be negative", ErrInvalidConfig)
	case c.BaseRating <= 0:
		return fmt.Errorf("%w: base_rating must be positive", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be at least 1", ErrInvalidConfig)
	case c.UpdateInterval < 0:
		return fmt.Errorf("%w: update_interval must not be negative", ErrInvalidConfig)
	case c.MaxRatingsLimit < 1:
		return fmt.Errorf("%w: max_ratings_limit must be at least 1", ErrInvalidConfig)
	case c.WriteChunkSize < 1 || c.FeedPageSize < 1:
		return fmt.Errorf("%w: write_chunk_size and feed_page_size must be at least 1", ErrInvalidConfig)
	case !metricName.MatchString(c.MetricsNamespace) || !metricName.MatchString(c.MetricsSubsystem):
		return fmt.Errorf("%w: metrics_namespace and metrics_subsystem must be metric names", ErrInvalidConfig)
	case !increasing(c.MetricsBuckets):
		return fmt.Errorf("%w: metrics_buckets must be strictly increasing", ErrInvalidConfig)
	}
	for name := range c.MetricsLabels {
		if !metricName.MatchString(name) {
			return fmt.Errorf("%w: metrics label %q is not a label name", ErrInvalidConfig, name)
		}
	}
	return nil
}

func increasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}

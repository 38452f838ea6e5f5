package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/gaffer/internal/adapters/feed"
	"github.com/okian/gaffer/internal/adapters/http/api"
	"github.com/okian/gaffer/internal/adapters/http/swagger"
	"github.com/okian/gaffer/internal/adapters/repository"
	app "github.com/okian/gaffer/internal/app"
	"github.com/okian/gaffer/internal/config"
	"github.com/okian/gaffer/internal/domain/elo"
	"github.com/okian/gaffer/internal/domain/types"
	"github.com/okian/gaffer/pkg/logger"
	"github.com/okian/gaffer/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 5 * time.Minute
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

// Process exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `usage: gaffer [command] [flags]

commands:
  serve    start the HTTP service (default)
  update   run one incremental rating update and print the result
  import   load the CSV cache into the raw_matches table
`

var errUsage = errors.New("unknown command")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return exitError
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return exitError
	}
	if err := logger.InitWithFormat(os.Stderr, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return exitError
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	log := logger.Get()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, args)
	case "update":
		err = update(ctx, cfg, stdout)
	case "import":
		err = importMatches(ctx, cfg)
	default:
		err = fmt.Errorf("%w %q", errUsage, cmd)
	}

	switch {
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Stderr.WriteString(usage)
		return exitUsage
	case err != nil:
		log.Error(ctx, "command failed", logger.String("command", cmd), logger.Error(err))
		return exitError
	}
	return exitOK
}

// openBackends picks the store and match source from configuration: Postgres
// for both when a database is configured, otherwise an in-memory store fed
// from the CSV cache.
func openBackends(ctx context.Context, cfg *config.Config) (repository.Store, feed.Feed, error) {
	log := logger.Get()
	if cfg.DatabaseURL == "" {
		log.Info(ctx, "using memory store", logger.String("csv_dir", cfg.CSVDir))
		return repository.NewMemoryStore(), feed.NewCSVFeed(cfg.CSVDir, feed.WithCSVLogger(log)), nil
	}

	pg, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL,
		repository.WithWriteChunkSize(cfg.WriteChunkSize),
		repository.WithFeedPageSize(cfg.FeedPageSize),
		repository.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	log.Info(ctx, "using postgres store")
	return pg, pg, nil
}

func engineOptions(cfg *config.Config) []elo.Option {
	return []elo.Option{
		elo.WithKFactors(cfg.KFactorStable, cfg.KFactorVolatile),
		elo.WithVolatileMatchCount(cfg.VolatileMatchCount),
		elo.WithHomeAdvantage(cfg.HomeAdvantage),
		elo.WithBaseRating(cfg.BaseRating),
		elo.WithStrictOrdering(cfg.StrictOrdering),
	}
}

func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsBuckets),
		metrics.WithConstLabels(cfg.MetricsLabels),
	}
}

func newService(cfg *config.Config, store repository.Store, source feed.Feed) *app.Service {
	return app.New(
		app.WithLogger(logger.Get()),
		app.WithStore(store),
		app.WithFeed(source),
		app.WithEngineOptions(engineOptions(cfg)...),
		app.WithQueueSize(cfg.QueueSize),
		app.WithUpdateInterval(cfg.UpdateInterval),
		app.WithRunOnStart(cfg.RunOnStart),
	)
}

// newMux registers every HTTP route served by the process.
func newMux(cfg *config.Config, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, svc, cfg.MaxRatingsLimit).Register(mux)
	return mux
}

func serve(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", cfg.Addr, "HTTP listen address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	log := logger.Get()
	metrics.Configure(metricsOptions(cfg)...)
	metrics.RegisterRuntimeCollectors()

	store, source, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}

	svc := newService(cfg, store, source)
	if err := svc.Start(ctx); err != nil {
		store.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// update runs once in the foreground. A run with no new matches succeeds.
// Without a database the run replays the CSV cache into memory and its
// ratings are discarded on exit.
func update(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	store, source, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.DatabaseURL == "" {
		logger.Get().Warn(ctx, "no database_url configured; ratings from this run are not persisted",
			logger.String("csv_dir", cfg.CSVDir))
	}

	res, err := newService(cfg, store, source).RunNow(ctx, "cli")
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(types.FromRunResult(res))
}

// importMatches copies the CSV cache into the raw_matches table.
func importMatches(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("import: %w", repository.ErrNoDatabase)
	}
	log := logger.Get()

	matches, err := feed.NewCSVFeed(cfg.CSVDir, feed.WithCSVLogger(log)).ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read csv cache: %w", err)
	}

	pg, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL,
		repository.WithWriteChunkSize(cfg.WriteChunkSize),
		repository.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.UpsertRawMatches(ctx, matches); err != nil {
		return fmt.Errorf("upsert raw matches: %w", err)
	}
	log.Info(ctx, "matches imported", logger.Int("matches", len(matches)), logger.String("csv_dir", cfg.CSVDir))
	return nil
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics refreshes gauges from the service's stats.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}

	if teams, ok := stats["totalTeams"].(int); ok {
		metrics.UpdateTeamsRated(teams)
	}
}

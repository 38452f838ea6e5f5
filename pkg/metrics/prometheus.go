// Package metrics provides Prometheus metrics for the gaffer rating service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultNamespace = "gaffer"
	defaultSubsystem = "elo"
)

// Run outcome label values.
const (
	OutcomeUpdated  = "updated"
	OutcomeUpToDate = "up_to_date"
	OutcomeFailed   = "failed"
)

// Manager manages all Prometheus metrics for the rating service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Rating run metrics
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	stageDuration      *prometheus.HistogramVec
	matchesFetched     prometheus.Counter
	matchesProcessed   prometheus.Counter
	teamsRated         prometheus.Gauge
	watermarkUnix      prometheus.Gauge
	lastRunUnix        prometheus.Gauge
	historyRowsWritten prometheus.Counter

	// Store metrics
	storeLatency *prometheus.HistogramVec

	// Run queue metrics
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueRejected prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

var runtimeOnce = &sync.Once{} //nolint:gochecknoglobals // guards RegisterRuntimeCollectors

// Configure rebuilds the global metrics on a fresh registry with opts applied.
// Call it at startup, before anything records or reads the registry.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	all := make([]Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, WithPrometheusRegistry(customRegistry))
	globalManager = NewManager(all...)
	runtimeOnce = &sync.Once{}
}

// RegisterRuntimeCollectors adds Go runtime and process metrics to the custom
// registry. Safe to call more than once.
func RegisterRuntimeCollectors() {
	runtimeOnce.Do(func() {
		customRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: globalManager.namespace}),
		)
	})
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Incremental rating runs by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_seconds",
		Help:        "Wall time of one incremental rating run",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stage_duration_seconds",
		Help:        "Wall time of each run stage (load, watermark, fetch, fold, persist)",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"stage"})

	m.matchesFetched = m.counter("matches_fetched_total", "Matches returned by the match feed after the watermark")
	m.matchesProcessed = m.counter("matches_processed_total", "Matches folded into ratings")
	m.historyRowsWritten = m.counter("history_rows_written_total", "Match history rows submitted to the rating store")
	m.teamsRated = m.gauge("teams_rated", "Number of teams with a stored rating")
	m.watermarkUnix = m.gauge("watermark_unix_seconds", "Latest match date folded into stored ratings")
	m.lastRunUnix = m.gauge("last_run_unix_seconds", "Completion time of the last successful run")

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_operation_seconds",
		Help:        "Rating store operation latency",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"backend", "operation"})

	m.queueSize = m.gauge("run_queue_size", "Pending run requests")
	m.queueCapacity = m.gauge("run_queue_capacity", "Run queue capacity")
	m.queueRejected = m.counter("run_queue_rejected_total", "Run requests rejected because the queue was full or closed")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_seconds",
		Help:        "HTTP request duration in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Errors by component and type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
}

// RecordRun records the outcome and duration of one run.
func (m *Manager) RecordRun(outcome string, d time.Duration) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(d.Seconds())
	if outcome != OutcomeFailed {
		m.lastRunUnix.SetToCurrentTime()
	}
}

// RecordRun records the outcome and duration of one run.
func RecordRun(outcome string, d time.Duration) { globalManager.RecordRun(outcome, d) }

// RecordStage records the duration of a single run stage.
func RecordStage(stage string, d time.Duration) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordMatchesFetched adds n to the fetched matches counter.
func RecordMatchesFetched(n int) { globalManager.matchesFetched.Add(float64(n)) }

// RecordMatchesProcessed adds n to the processed matches counter.
func RecordMatchesProcessed(n int) { globalManager.matchesProcessed.Add(float64(n)) }

// RecordHistoryRowsWritten adds n to the history rows counter.
func RecordHistoryRowsWritten(n int) { globalManager.historyRowsWritten.Add(float64(n)) }

// UpdateTeamsRated sets the number of rated teams.
func UpdateTeamsRated(n int) { globalManager.teamsRated.Set(float64(n)) }

// UpdateWatermark sets the watermark gauge. A zero time leaves it unchanged.
func UpdateWatermark(t time.Time) {
	if t.IsZero() {
		return
	}
	globalManager.watermarkUnix.Set(float64(t.Unix()))
}

// RecordStoreLatency records one store call.
func RecordStoreLatency(backend, operation string, d time.Duration) {
	globalManager.storeLatency.WithLabelValues(backend, operation).Observe(d.Seconds())
}

// UpdateQueueSize sets the pending run request gauge.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the run queue capacity gauge.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueRejected increments the rejected run request counter.
func RecordQueueRejected() { globalManager.queueRejected.Inc() }

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, d time.Duration) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(d.Seconds())
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

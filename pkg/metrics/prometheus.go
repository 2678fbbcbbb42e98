// Package metrics provides Prometheus metrics for the supplier matcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds; the external scorer timeout sits near the top.
var defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// Manager owns every collector exported by the matcher.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Matching runs
	matchRuns       *prometheus.CounterVec
	matchDuration   prometheus.Histogram
	matchCandidates prometheus.Histogram

	// Ledger
	matchesCreated   prometheus.Counter
	matchesDuplicate prometheus.Counter
	matchesReused    prometheus.Counter
	ledgerErrors     *prometheus.CounterVec
	ledgerLatency    *prometheus.HistogramVec

	// Scoring
	scoringStrategy  *prometheus.CounterVec
	scorerFailures   *prometheus.CounterVec
	scoringLatency   *prometheus.HistogramVec
	metricsFallbacks prometheus.Counter

	// Explanations
	explanationFallbacks prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Store contents
	storeRecords *prometheus.GaugeVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseMs      prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // package-level recorder used by the helpers below

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps Go runtime collectors out of /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rfqmatch",
		subsystem:        "matcher",
		histogramBuckets: defaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per collector
	auto := promauto.With(m.registry)

	m.matchRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Matching runs by outcome (scored, reused, empty, failed)",
	}, []string{"outcome"})

	m.matchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_milliseconds",
		Help:      "End-to-end duration of a matching run",
		Buckets:   m.histogramBuckets,
	})

	m.matchCandidates = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "candidates",
		Help:      "Number of candidate suppliers considered per run",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	m.matchesCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_created_total",
		Help:      "Match records written to the ledger",
	})

	m.matchesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_duplicate_total",
		Help:      "Match creations rejected because the pair already existed",
	})

	m.matchesReused = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_reused_total",
		Help:      "Persisted match records re-explained instead of re-scored",
	})

	m.ledgerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_errors_total",
		Help:      "Ledger operation failures by operation",
	}, []string{"operation"})

	m.ledgerLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_latency_milliseconds",
		Help:      "Ledger operation latency by operation",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})

	m.scoringStrategy = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_batches_total",
		Help:      "Scored batches by the strategy that produced the scores",
	}, []string{"strategy"})

	m.scorerFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "external_scorer_failures_total",
		Help:      "External scorer batch failures that triggered the heuristic fallback",
	}, []string{"reason"})

	m.scoringLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_latency_milliseconds",
		Help:      "Batch scoring latency by strategy",
		Buckets:   m.histogramBuckets,
	}, []string{"strategy"})

	m.metricsFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "performance_defaults_total",
		Help:      "Runs where the metrics provider failed and default profiles were used",
	})

	m.explanationFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "explanation_fallbacks_total",
		Help:      "Explanations served by the fallback path after the rich path failed",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration by route, method and status code",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method", "status_code"})

	m.storeRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_records",
		Help:      "Rows held by the store by kind (rfqs, suppliers, matches, submitted)",
	}, []string{"kind"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	})

	m.systemGCPauseMs = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_avg_milliseconds",
		Help:      "Average GC pause since process start",
	})
}

// RecordMatchRun counts a finished matching run and its duration.
func RecordMatchRun(outcome string, durationMs float64) {
	globalManager.matchRuns.WithLabelValues(outcome).Inc()
	globalManager.matchDuration.Observe(durationMs)
}

// RecordCandidates observes the candidate set size of a run.
func RecordCandidates(n int) {
	globalManager.matchCandidates.Observe(float64(n))
}

// RecordMatchCreated increments the created matches counter.
func RecordMatchCreated() {
	globalManager.matchesCreated.Inc()
}

// RecordMatchDuplicate increments the duplicate matches counter.
func RecordMatchDuplicate() {
	globalManager.matchesDuplicate.Inc()
}

// RecordMatchesReused adds n re-explained records.
func RecordMatchesReused(n int) {
	globalManager.matchesReused.Add(float64(n))
}

// RecordLedgerError counts a failed ledger operation.
func RecordLedgerError(operation string) {
	globalManager.ledgerErrors.WithLabelValues(operation).Inc()
}

// RecordLedgerLatency records ledger operation latency in milliseconds.
func RecordLedgerLatency(operation string, latencyMs float64) {
	globalManager.ledgerLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordScoringBatch counts a scored batch and its latency under strategy.
func RecordScoringBatch(strategy string, latencyMs float64) {
	globalManager.scoringStrategy.WithLabelValues(strategy).Inc()
	globalManager.scoringLatency.WithLabelValues(strategy).Observe(latencyMs)
}

// RecordScorerFailure counts an external scorer failure by reason.
func RecordScorerFailure(reason string) {
	globalManager.scorerFailures.WithLabelValues(reason).Inc()
}

// RecordMetricsFallback counts a run that used default performance profiles.
func RecordMetricsFallback() {
	globalManager.metricsFallbacks.Inc()
}

// RecordExplanationFallback counts an explanation served by the fallback path.
func RecordExplanationFallback() {
	globalManager.explanationFallbacks.Inc()
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(route, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(durationMs)
}

// UpdateStoreRecords sets the row count for one kind of stored record.
func UpdateStoreRecords(kind string, n int) {
	globalManager.storeRecords.WithLabelValues(kind).Set(float64(n))
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime sets the average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseMs.Set(ms)
}

// GetRegistry returns the registry backing the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

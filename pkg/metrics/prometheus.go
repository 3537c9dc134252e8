// Package metrics provides Prometheus metrics for the cadence review engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the cadence service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Generation
	cyclesGenerated    *prometheus.CounterVec
	evaluationsCreated *prometheus.CounterVec
	skippedEdges       prometheus.Counter
	duplicateTriples   prometheus.Counter
	batchesCommitted   prometheus.Counter
	batchesFailed      prometheus.Counter
	batchSize          prometheus.Histogram
	generationDuration prometheus.Histogram

	// Resolution
	pairingsResolved   prometheus.Counter
	pairingsBroken     prometheus.Counter
	selfFallbacks      prometheus.Counter
	resolutionDuration prometheus.Histogram

	// Publication and editing
	publishOutcomes      *prometheus.CounterVec
	evaluationsSubmitted prometheus.Counter
	publishedRecords     prometheus.Gauge

	// Store
	storeLatency   *prometheus.HistogramVec
	storeErrors    *prometheus.CounterVec
	storeDocuments *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cadence",
		subsystem:        "reviews",
		histogramBuckets: DefaultDurationBuckets,
		enabled:          true,
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.cyclesGenerated = m.counterVec("cycles_generated_total", "Monthly cycles created, by kind", "kind")
	m.evaluationsCreated = m.counterVec("evaluations_created_total", "Evaluation records written by the generator, by kind", "kind")
	m.skippedEdges = m.counter("skipped_edges_total", "Reporting edges skipped because the report id did not resolve")
	m.duplicateTriples = m.counter("duplicate_triples_total", "Evaluation records skipped because the giver/receiver/cycle triple already existed")
	m.batchesCommitted = m.counter("batches_committed_total", "Atomic write batches committed by the generator")
	m.batchesFailed = m.counter("batches_failed_total", "Atomic write batches that failed to commit")
	m.batchSize = m.histogram("batch_size_records", "Number of mutations per committed batch",
		prometheus.ExponentialBuckets(1, 2, 10))
	m.generationDuration = m.histogram("generation_duration_milliseconds", "Duration of a generate-next-cycle run in milliseconds",
		m.histogramBuckets)

	m.pairingsResolved = m.counter("pairings_resolved_total", "Pairings produced by the resolver")
	m.pairingsBroken = m.counter("pairings_broken_total", "Pairings reported as broken by the resolver")
	m.selfFallbacks = m.counter("self_lookup_fallbacks_total", "Self-assessment lookups satisfied by the full-cycle fallback scan")
	m.resolutionDuration = m.histogram("resolution_duration_milliseconds", "Duration of a pairing resolution in milliseconds",
		m.histogramBuckets)

	m.publishOutcomes = m.counterVec("publish_attempts_total", "Publish attempts by outcome", "outcome")
	m.evaluationsSubmitted = m.counter("evaluations_submitted_total", "Evaluation records filled in by givers")
	m.publishedRecords = m.gauge("published_records_last_sequence", "Last allocated published-record sequence number")

	m.storeLatency = m.histogramVec("store_operation_latency_milliseconds", "Document store operation latency in milliseconds", "backend", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Document store operation errors", "backend", "operation")
	m.storeDocuments = m.gaugeVec("store_documents", "Documents held per collection", "collection")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Current memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Garbage collection pause time in milliseconds",
		m.histogramBuckets)
}

// Generation metrics.

func RecordCycleGenerated(kind string) {
	if globalManager.enabled {
		globalManager.cyclesGenerated.WithLabelValues(kind).Inc()
	}
}

func RecordEvaluationsCreated(kind string, n int) {
	if globalManager.enabled && n > 0 {
		globalManager.evaluationsCreated.WithLabelValues(kind).Add(float64(n))
	}
}

func RecordSkippedEdges(n int) {
	if globalManager.enabled && n > 0 {
		globalManager.skippedEdges.Add(float64(n))
	}
}

func RecordDuplicateTriple() {
	if globalManager.enabled {
		globalManager.duplicateTriples.Inc()
	}
}

func RecordBatchCommitted(size int) {
	if globalManager.enabled {
		globalManager.batchesCommitted.Inc()
		globalManager.batchSize.Observe(float64(size))
	}
}

func RecordBatchFailed() {
	if globalManager.enabled {
		globalManager.batchesFailed.Inc()
	}
}

func RecordGenerationDuration(ms float64) {
	if globalManager.enabled {
		globalManager.generationDuration.Observe(ms)
	}
}

// Resolution metrics.

func RecordPairingsResolved(total, broken int) {
	if !globalManager.enabled {
		return
	}
	globalManager.pairingsResolved.Add(float64(total))
	globalManager.pairingsBroken.Add(float64(broken))
}

func RecordSelfFallback() {
	if globalManager.enabled {
		globalManager.selfFallbacks.Inc()
	}
}

func RecordResolutionDuration(ms float64) {
	if globalManager.enabled {
		globalManager.resolutionDuration.Observe(ms)
	}
}

// Publication metrics.

func RecordPublishOutcome(outcome string) {
	if globalManager.enabled {
		globalManager.publishOutcomes.WithLabelValues(outcome).Inc()
	}
}

func RecordEvaluationSubmitted() {
	if globalManager.enabled {
		globalManager.evaluationsSubmitted.Inc()
	}
}

func UpdatePublishedSequence(seq int64) {
	if globalManager.enabled {
		globalManager.publishedRecords.Set(float64(seq))
	}
}

// Store metrics.

func RecordStoreLatency(backend, operation string, ms float64) {
	if globalManager.enabled {
		globalManager.storeLatency.WithLabelValues(backend, operation).Observe(ms)
	}
}

func RecordStoreError(backend, operation string) {
	if globalManager.enabled {
		globalManager.storeErrors.WithLabelValues(backend, operation).Inc()
	}
}

func UpdateStoredDocuments(collection string, n int) {
	if globalManager.enabled {
		globalManager.storeDocuments.WithLabelValues(collection).Set(float64(n))
	}
}

// HTTP metrics.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Error metrics.

func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System metrics.

func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

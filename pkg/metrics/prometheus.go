// Package metrics provides Prometheus metrics for the postflow publication service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the postflow service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Publish pipeline
	publishes         *prometheus.CounterVec
	publishLatency    prometheus.Histogram
	stageLatency      *prometheus.HistogramVec
	degradedSteps     *prometheus.CounterVec
	rateLimitRejected prometheus.Counter

	// Uploads
	uploadBytes    prometheus.Counter
	uploadLatency  prometheus.Histogram
	uploadFailures prometheus.Counter

	// Publication
	verificationFailures prometheus.Counter
	compensatingDeletes  prometheus.Counter
	commerceItems        *prometheus.CounterVec

	// Rewards
	badgesAwarded   *prometheus.CounterVec
	bonusGrants     prometheus.Counter
	rewardsIssued   *prometheus.CounterVec
	rewardsClaimed  prometheus.Counter
	txRetries       prometheus.Counter
	txCommitLatency prometheus.Histogram

	// Integrity sweep
	sweepRuns    prometheus.Counter
	sweepRemoved *prometheus.CounterVec

	// Event relay
	queueSize       prometheus.Gauge
	queueEnqueued   prometheus.Counter
	queueDropped    prometheus.Counter
	eventsPublished prometheus.Counter
	eventsFailed    prometheus.Counter
	workerCount     prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "postflow",
		subsystem:        "pipeline",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      prometheus.Labels{},
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
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

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	m.publishes = m.counterVec("publishes_total", "Publish attempts by outcome kind", "outcome")
	m.publishLatency = m.histogram("publish_latency_milliseconds", "End-to-end publish latency in milliseconds")
	m.stageLatency = m.histogramVec("stage_latency_milliseconds", "Latency of each pipeline stage in milliseconds", "stage")
	m.degradedSteps = m.counterVec("degraded_steps_total", "Best-effort steps that failed and were skipped", "step")
	m.rateLimitRejected = m.counter("rate_limit_rejections_total", "Publishes rejected by the per-user cooldown")

	m.uploadBytes = m.counter("upload_bytes_total", "Total bytes written to the object store")
	m.uploadLatency = m.histogram("upload_latency_milliseconds", "Single asset upload latency in milliseconds")
	m.uploadFailures = m.counter("upload_failures_total", "Asset uploads that failed")

	m.verificationFailures = m.counter("verification_failures_total", "Posts whose assets could not be re-resolved after write")
	m.compensatingDeletes = m.counter("compensating_deletes_total", "Posts removed by a compensating delete")
	m.commerceItems = m.counterVec("commerce_items_total", "Commerce items by result", "result")

	m.badgesAwarded = m.counterVec("badges_awarded_total", "Badges awarded by subject category", "category")
	m.bonusGrants = m.counter("bonus_grants_total", "Bonus point grants for already-awarded subjects")
	m.rewardsIssued = m.counterVec("rewards_issued_total", "Milestone rewards issued by reward type", "type")
	m.rewardsClaimed = m.counter("rewards_claimed_total", "Milestone rewards claimed")
	m.txRetries = m.counter("transaction_retries_total", "Store transactions retried after a conflict")
	m.txCommitLatency = m.histogram("transaction_latency_milliseconds", "Store transaction latency in milliseconds")

	m.sweepRuns = m.counter("sweep_runs_total", "Integrity sweep runs")
	m.sweepRemoved = m.counterVec("sweep_removed_total", "Posts removed by the integrity sweep", "reason")

	m.queueSize = m.gauge("event_queue_size", "Current number of buffered post events")
	m.queueEnqueued = m.counter("event_queue_enqueued_total", "Post events enqueued")
	m.queueDropped = m.counter("event_queue_dropped_total", "Post events dropped because the queue was full")
	m.eventsPublished = m.counter("events_published_total", "Post events delivered to the event sink")
	m.eventsFailed = m.counter("events_failed_total", "Post events the event sink rejected")
	m.workerCount = m.gauge("event_worker_count", "Number of event relay workers")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordPublish counts a publish attempt by its outcome kind.
func RecordPublish(outcome string) {
	globalManager.publishes.WithLabelValues(outcome).Inc()
}

// RecordPublishLatency records end-to-end publish latency.
func RecordPublishLatency(latencyMs float64) {
	globalManager.publishLatency.Observe(latencyMs)
}

// RecordStageLatency records the latency of one pipeline stage.
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordDegradedStep counts a best-effort step that failed.
func RecordDegradedStep(step string) {
	globalManager.degradedSteps.WithLabelValues(step).Inc()
}

func RecordRateLimitRejected() {
	globalManager.rateLimitRejected.Inc()
}

// RecordUpload records a successful upload of n bytes.
func RecordUpload(bytes int64, latencyMs float64) {
	globalManager.uploadBytes.Add(float64(bytes))
	globalManager.uploadLatency.Observe(latencyMs)
}

func RecordUploadFailure() {
	globalManager.uploadFailures.Inc()
}

func RecordVerificationFailure() {
	globalManager.verificationFailures.Inc()
}

func RecordCompensatingDelete() {
	globalManager.compensatingDeletes.Inc()
}

// RecordCommerceItem counts a commerce item as "created" or "skipped".
func RecordCommerceItem(result string) {
	globalManager.commerceItems.WithLabelValues(result).Inc()
}

func RecordBadgeAwarded(category string) {
	globalManager.badgesAwarded.WithLabelValues(category).Inc()
}

func RecordBonusGrant() {
	globalManager.bonusGrants.Inc()
}

func RecordRewardIssued(rewardType string) {
	globalManager.rewardsIssued.WithLabelValues(rewardType).Inc()
}

func RecordRewardClaimed() {
	globalManager.rewardsClaimed.Inc()
}

// RecordTransactionRetry counts a transaction attempt aborted by a write conflict.
func RecordTransactionRetry() {
	globalManager.txRetries.Inc()
}

func RecordTransactionLatency(latencyMs float64) {
	globalManager.txCommitLatency.Observe(latencyMs)
}

func RecordSweepRun() {
	globalManager.sweepRuns.Inc()
}

// RecordSweepRemoved counts posts removed by the sweep, labelled "pending" or "broken".
func RecordSweepRemoved(reason string, n int) {
	globalManager.sweepRemoved.WithLabelValues(reason).Add(float64(n))
}

func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

func RecordQueueDrop() {
	globalManager.queueDropped.Inc()
}

func RecordEventPublished() {
	globalManager.eventsPublished.Inc()
}

func RecordEventFailed() {
	globalManager.eventsFailed.Inc()
}

func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

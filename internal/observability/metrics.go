// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Validation metrics
	CandidatesProcessed *prometheus.CounterVec
	Rejections          *prometheus.CounterVec
	MalformedCandidates prometheus.Counter
	ProcessingLatency   prometheus.Histogram

	// Worker metrics
	EventsConsumed      prometheus.Counter
	DuplicateDeliveries prometheus.Counter
	ConsumeErrors       *prometheus.CounterVec
	AuditAppendErrors   prometheus.Counter

	// Messaging metrics
	MessagesPublished *prometheus.CounterVec
	PublishLatency    prometheus.Histogram

	// Expiry metrics
	SweepRuns     *prometheus.CounterVec
	TradesExpired prometheus.Counter
	SweepDuration prometheus.Histogram
	LastSweep     prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Stream metrics
	StreamClients     prometheus.Gauge
	OutcomesPublished prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tradestream"
	}

	return &Metrics{
		// Validation metrics
		CandidatesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "candidates_processed_total",
			Help:      "Total number of candidates processed by outcome",
		}, []string{"outcome"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "rejections_total",
			Help:      "Total number of rejections by failed rule",
		}, []string{"rule"}),
		MalformedCandidates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "malformed_candidates_total",
			Help:      "Total number of structurally invalid candidates",
		}),
		ProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "processing_latency_seconds",
			Help:      "Candidate processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Worker metrics
		EventsConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_consumed_total",
			Help:      "Total number of candidate events consumed",
		}),
		DuplicateDeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicate_deliveries_total",
			Help:      "Total number of already-processed deliveries skipped",
		}),
		ConsumeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "consume_errors_total",
			Help:      "Total number of consume errors by type",
		}, []string{"error_type"}),
		AuditAppendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "audit_append_errors_total",
			Help:      "Total number of dropped outcome audit appends",
		}),

		// Messaging metrics
		MessagesPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "messages_published_total",
			Help:      "Total number of candidate messages published by status",
		}, []string{"status"}),
		PublishLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "publish_latency_seconds",
			Help:      "Candidate publish latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Expiry metrics
		SweepRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "sweep_runs_total",
			Help:      "Total number of expiry sweeps by trigger",
		}, []string{"trigger"}),
		TradesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "trades_expired_total",
			Help:      "Total number of projection rows transitioned to EXPIRED",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "sweep_duration_seconds",
			Help:      "Expiry sweep duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		LastSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "last_sweep_timestamp",
			Help:      "Unix timestamp of the last completed sweep",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Stream metrics
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected outcome stream clients",
		}),
		OutcomesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "outcomes_published_total",
			Help:      "Total number of outcome events published to the stream",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordProcessed increments the processed counter for an outcome and
// observes the processing latency.
func RecordProcessed(outcome string, seconds float64) {
	DefaultMetrics.CandidatesProcessed.WithLabelValues(outcome).Inc()
	DefaultMetrics.ProcessingLatency.Observe(seconds)
}

// RecordRejection increments the rejection counter for a failed rule.
func RecordRejection(rule string) {
	DefaultMetrics.Rejections.WithLabelValues(rule).Inc()
}

// RecordMalformed increments the malformed candidate counter.
func RecordMalformed() {
	DefaultMetrics.MalformedCandidates.Inc()
}

// RecordConsumed increments the consumed events counter.
func RecordConsumed() {
	DefaultMetrics.EventsConsumed.Inc()
}

// RecordDuplicateDelivery increments the duplicate delivery counter.
func RecordDuplicateDelivery() {
	DefaultMetrics.DuplicateDeliveries.Inc()
}

// RecordConsumeError records a consume error by type.
func RecordConsumeError(errorType string) {
	DefaultMetrics.ConsumeErrors.WithLabelValues(errorType).Inc()
}

// RecordAuditDrop increments the dropped audit append counter.
func RecordAuditDrop() {
	DefaultMetrics.AuditAppendErrors.Inc()
}

// RecordPublish records a publish attempt with its latency.
func RecordPublish(status string, seconds float64) {
	DefaultMetrics.MessagesPublished.WithLabelValues(status).Inc()
	DefaultMetrics.PublishLatency.Observe(seconds)
}

// RecordSweep records one expiry sweep pass.
func RecordSweep(trigger string, expired int64, seconds float64) {
	DefaultMetrics.SweepRuns.WithLabelValues(trigger).Inc()
	DefaultMetrics.TradesExpired.Add(float64(expired))
	DefaultMetrics.SweepDuration.Observe(seconds)
}

// SetLastSweep updates the last sweep timestamp gauge.
func SetLastSweep(unixSeconds int64) {
	DefaultMetrics.LastSweep.Set(float64(unixSeconds))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// SetStreamClients updates the connected stream clients gauge.
func SetStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordOutcomePublished increments the streamed outcomes counter.
func RecordOutcomePublished() {
	DefaultMetrics.OutcomesPublished.Inc()
}

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
	// Ingestion metrics
	InstructionsReceived *prometheus.CounterVec
	DuplicatesRejected   prometheus.Counter
	TradesExtracted      *prometheus.CounterVec
	ExtractionErrors     *prometheus.CounterVec
	DegradedExtractions  prometheus.Counter

	// Rolling state metrics
	TrackedMints prometheus.Gauge
	SignalsFired *prometheus.CounterVec
	CellsSwept   prometheus.Counter

	// Persistence metrics
	QueueDepth     prometheus.Gauge
	QueueDrops     prometheus.Counter
	BatchesWritten prometheus.Counter
	BatchSize      prometheus.Histogram
	CommitLatency  prometheus.Histogram

	// Enrichment metrics
	MetadataFetches *prometheus.CounterVec

	// Stream metrics
	StreamReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solflow"
	}

	return &Metrics{
		InstructionsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "instructions_received_total",
			Help:      "Total decoded instructions received by venue program",
		}, []string{"program"}),
		DuplicatesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicates_rejected_total",
			Help:      "Total instructions rejected by signature deduplication",
		}),
		TradesExtracted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_extracted_total",
			Help:      "Total trade events extracted by venue program",
		}, []string{"program"}),
		ExtractionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "extraction_errors_total",
			Help:      "Total extraction failures by error type",
		}, []string{"error_type"}),
		DegradedExtractions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "degraded_extractions_total",
			Help:      "Total trades whose SOL amount fell back to an instruction bound",
		}),

		TrackedMints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rolling",
			Name:      "tracked_mints",
			Help:      "Current number of mints with live rolling state",
		}),
		SignalsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "fired_total",
			Help:      "Total signals fired by type",
		}, []string{"signal_type"}),
		CellsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rolling",
			Name:      "cells_swept_total",
			Help:      "Total idle rolling-state cells removed",
		}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "queue_depth",
			Help:      "Current number of requests in the write queue",
		}),
		QueueDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "queue_drops_total",
			Help:      "Total write requests dropped because the queue was full",
		}),
		BatchesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "batches_written_total",
			Help:      "Total batches committed",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "batch_size",
			Help:      "Requests per committed batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100},
		}),
		CommitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "commit_latency_seconds",
			Help:      "Batch commit latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		MetadataFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "metadata_fetches_total",
			Help:      "Total metadata fetch attempts by outcome",
		}, []string{"outcome"}),

		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total upstream stream reconnect attempts",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordInstruction increments the received counter for a venue program.
func RecordInstruction(program string) {
	DefaultMetrics.InstructionsReceived.WithLabelValues(program).Inc()
}

// RecordDuplicate increments the dedup rejection counter.
func RecordDuplicate() {
	DefaultMetrics.DuplicatesRejected.Inc()
}

// RecordTradeExtracted increments the extracted counter for a venue program.
func RecordTradeExtracted(program string) {
	DefaultMetrics.TradesExtracted.WithLabelValues(program).Inc()
}

// RecordExtractionError records an extraction failure.
func RecordExtractionError(errorType string) {
	DefaultMetrics.ExtractionErrors.WithLabelValues(errorType).Inc()
}

// RecordDegraded increments the degraded extraction counter.
func RecordDegraded() {
	DefaultMetrics.DegradedExtractions.Inc()
}

// SetTrackedMints updates the live rolling-state gauge.
func SetTrackedMints(n int) {
	DefaultMetrics.TrackedMints.Set(float64(n))
}

// RecordSignal increments the fired counter for a signal type.
func RecordSignal(signalType string) {
	DefaultMetrics.SignalsFired.WithLabelValues(signalType).Inc()
}

// RecordSweep adds removed cells to the sweep counter.
func RecordSweep(removed int) {
	DefaultMetrics.CellsSwept.Add(float64(removed))
}

// SetQueueDepth updates the write queue gauge.
func SetQueueDepth(n int) {
	DefaultMetrics.QueueDepth.Set(float64(n))
}

// RecordQueueDrop increments the queue drop counter.
func RecordQueueDrop() {
	DefaultMetrics.QueueDrops.Inc()
}

// RecordBatchCommit records one committed batch.
func RecordBatchCommit(size int, seconds float64) {
	DefaultMetrics.BatchesWritten.Inc()
	DefaultMetrics.BatchSize.Observe(float64(size))
	DefaultMetrics.CommitLatency.Observe(seconds)
}

// RecordMetadataFetch records a metadata fetch attempt.
func RecordMetadataFetch(outcome string) {
	DefaultMetrics.MetadataFetches.WithLabelValues(outcome).Inc()
}

// RecordStreamReconnect increments the reconnect counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

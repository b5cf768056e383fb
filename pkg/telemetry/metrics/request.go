package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"modex-hq/aegis/pkg/config"
)

// RequestMetrics tracks moderation request processing.
//
// Metrics:
//   - aegis_moderation_requests_total: request count by endpoint, verdict, status
//   - aegis_moderation_request_duration_seconds: end-to-end request duration
//   - aegis_moderation_batch_items: images per batch-moderation request
//   - aegis_moderation_audit_records_dropped_total: audit records lost to backpressure
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	batchItems      prometheus.Histogram
	auditDropped    prometheus.Counter
}

// NewRequestMetrics creates and registers request metrics.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of moderation requests processed",
			},
			[]string{"endpoint", "verdict", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end duration of moderation requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"endpoint"},
		),

		batchItems: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_items",
				Help:      "Number of images per batch-moderation request",
				Buckets:   []float64{1, 2, 3, 5, 8, 10},
			},
		),

		auditDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_records_dropped_total",
				Help:      "Audit records dropped because the recorder buffer was full",
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.batchItems,
		rm.auditDropped,
	)

	return rm
}

// RecordRequest records one completed moderation request.
func (rm *RequestMetrics) RecordRequest(endpoint, verdict, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(endpoint, verdict, status).Inc()
	rm.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordBatchItems records the item count of a batch request.
func (rm *RequestMetrics) RecordBatchItems(n int) {
	rm.batchItems.Observe(float64(n))
}

// RecordAuditDrop counts one dropped audit record.
func (rm *RequestMetrics) RecordAuditDrop() {
	rm.auditDropped.Inc()
}

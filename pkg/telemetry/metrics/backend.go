package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"modex-hq/aegis/pkg/config"
)

// BackendMetrics tracks calls to the moderation model backends.
//
// Metrics:
//   - aegis_moderation_backend_calls_total: call count by kind, version, status
//   - aegis_moderation_backend_latency_seconds: call latency histogram
//   - aegis_moderation_backend_healthy: per-backend health gauge
type BackendMetrics struct {
	callsTotal *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	healthy    *prometheus.GaugeVec
}

// NewBackendMetrics creates and registers backend metrics.
func NewBackendMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BackendMetrics {
	bm := &BackendMetrics{
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_calls_total",
				Help:      "Total number of backend calls by terminal status",
			},
			[]string{"kind", "version", "status"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_latency_seconds",
				Help:      "Latency of backend calls in seconds",
				Buckets:   cfg.BackendLatencyBuckets,
			},
			[]string{"kind", "version"},
		),

		healthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_healthy",
				Help:      "Whether a backend is currently healthy (1) or not (0)",
			},
			[]string{"kind", "version"},
		),
	}

	registry.MustRegister(bm.callsTotal, bm.latency, bm.healthy)
	return bm
}

// RecordCall records one terminated backend call.
func (bm *BackendMetrics) RecordCall(kind, version, status string, latency time.Duration) {
	bm.callsTotal.WithLabelValues(kind, version, status).Inc()
	bm.latency.WithLabelValues(kind, version).Observe(latency.Seconds())
}

// SetHealthy updates a backend's health gauge.
func (bm *BackendMetrics) SetHealthy(kind, version string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	bm.healthy.WithLabelValues(kind, version).Set(value)
}

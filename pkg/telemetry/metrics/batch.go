package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"modex-hq/aegis/pkg/config"
)

// BatchMetrics tracks micro-batch window behavior.
//
// Metrics:
//   - aegis_moderation_batch_size: sealed window size by kind and trigger
//   - aegis_moderation_batch_window_wait_seconds: window age at seal time
type BatchMetrics struct {
	batchSize  *prometheus.HistogramVec
	windowWait *prometheus.HistogramVec
}

// NewBatchMetrics creates and registers batch metrics.
func NewBatchMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BatchMetrics {
	bm := &BatchMetrics{
		batchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_size",
				Help:      "Number of calls in a sealed batch window",
				Buckets:   []float64{1, 2, 4, 8, 16, 32},
			},
			[]string{"kind", "trigger"},
		),

		windowWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_window_wait_seconds",
				Help:      "Age of a batch window when it sealed",
				// Windows seal within microseconds to low milliseconds
				Buckets: []float64{0.00005, 0.0001, 0.0002, 0.0005, 0.001, 0.005, 0.01, 0.1, 1.0},
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(bm.batchSize, bm.windowWait)
	return bm
}

// Seal triggers.
const (
	// TriggerCapacity means the window filled to capacity.
	TriggerCapacity = "capacity"
	// TriggerTimer means the max-wait timer fired.
	TriggerTimer = "timer"
)

// RecordSeal records one sealed window.
func (bm *BatchMetrics) RecordSeal(kind, trigger string, size int, age time.Duration) {
	bm.batchSize.WithLabelValues(kind, trigger).Observe(float64(size))
	bm.windowWait.WithLabelValues(kind).Observe(age.Seconds())
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"modex-hq/aegis/pkg/config"
)

// RoutingMetrics tracks version selection and policy changes.
//
// Metrics:
//   - aegis_moderation_routing_selections_total: selections by kind, version, source
//   - aegis_moderation_routing_policy_version: current policy snapshot number
//   - aegis_moderation_routing_policy_updates_total: policy installs by result
type RoutingMetrics struct {
	selectionsTotal *prometheus.CounterVec
	policyVersion   prometheus.Gauge
	policyUpdates   *prometheus.CounterVec
}

// NewRoutingMetrics creates and registers routing metrics.
func NewRoutingMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RoutingMetrics {
	rm := &RoutingMetrics{
		selectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "routing_selections_total",
				Help:      "Total number of version selections",
			},
			[]string{"kind", "version", "source"},
		),

		policyVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "routing_policy_version",
				Help:      "Currently active routing policy snapshot number",
			},
		),

		policyUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "routing_policy_updates_total",
				Help:      "Total number of routing policy update attempts",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(rm.selectionsTotal, rm.policyVersion, rm.policyUpdates)
	return rm
}

// Selection sources.
const (
	// SourceDraw means the version came from a fresh weighted draw.
	SourceDraw = "draw"
	// SourceSticky means the version came from the sticky cache.
	SourceSticky = "sticky"
)

// RecordSelection records one version selection.
func (rm *RoutingMetrics) RecordSelection(kind, version, source string) {
	rm.selectionsTotal.WithLabelValues(kind, version, source).Inc()
}

// SetPolicyVersion updates the active policy snapshot gauge.
func (rm *RoutingMetrics) SetPolicyVersion(version int64) {
	rm.policyVersion.Set(float64(version))
}

// RecordPolicyUpdate records a policy update attempt.
func (rm *RoutingMetrics) RecordPolicyUpdate(accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	rm.policyUpdates.WithLabelValues(result).Inc()
}

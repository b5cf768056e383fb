// Package metrics provides Prometheus instrumentation for the moderation
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"modex-hq/aegis/pkg/config"
)

// Collector owns the Prometheus registry and every metric family the engine
// records into. One collector serves the whole process.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Request metrics
	requestMetrics *RequestMetrics

	// Backend call metrics
	backendMetrics *BackendMetrics

	// Batch window metrics
	batchMetrics *BatchMetrics

	// Routing metrics
	routingMetrics *RoutingMetrics
}

// NewCollector creates a collector with the specified configuration and
// Prometheus registry. If registry is nil, a fresh registry is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "aegis"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "moderation"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0}
	}
	if len(cfg.BackendLatencyBuckets) == 0 {
		cfg.BackendLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.requestMetrics = NewRequestMetrics(cfg, registry)
	c.backendMetrics = NewBackendMetrics(cfg, registry)
	c.batchMetrics = NewBatchMetrics(cfg, registry)
	c.routingMetrics = NewRoutingMetrics(cfg, registry)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Request returns the request metrics.
func (c *Collector) Request() *RequestMetrics {
	return c.requestMetrics
}

// Backend returns the backend call metrics.
func (c *Collector) Backend() *BackendMetrics {
	return c.backendMetrics
}

// Batch returns the batch window metrics.
func (c *Collector) Batch() *BatchMetrics {
	return c.batchMetrics
}

// Routing returns the routing metrics.
func (c *Collector) Routing() *RoutingMetrics {
	return c.routingMetrics
}

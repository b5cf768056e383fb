// Aegis is a content moderation orchestration service.
//
// It fronts a fleet of moderation model backends (content classifier,
// safety detector, OCR) and provides:
//   - Weighted traffic routing across deployed model versions
//   - Request batching toward batch-capable backends
//   - Ensemble decision aggregation with configurable thresholds
//   - Durable audit records for every decision
//   - Prometheus metrics and OpenTelemetry tracing
//
// Usage:
//
//	# Start server with default configuration
//	aegis run
//
//	# Start with custom configuration file
//	aegis run --config /path/to/config.yaml
//
//	# Validate a configuration file
//	aegis validate --config /path/to/config.yaml
//
//	# Show version information
//	aegis version
package main

func main() {
	Execute()
}

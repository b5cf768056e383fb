package config

import "time"

// Config is the root configuration structure for Aegis.
// It contains all configuration sections for the HTTP server, the moderation
// backends, traffic routing, decision thresholds, audit storage, telemetry,
// and request limits.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Backends contains configuration for the three moderation backends.
	// Keys are backend kinds: "classifier", "safety", "ocr".
	Backends map[string]BackendConfig `yaml:"backends"`

	// Routing contains configuration for the traffic router including the
	// active rollout policy, sticky-session settings, and policy file watch.
	Routing RoutingConfig `yaml:"routing"`

	// Decision contains the ensemble decision thresholds and factor weights.
	Decision DecisionConfig `yaml:"decision"`

	// Audit contains configuration for decision audit recording and storage.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Limits contains request admission limits.
	Limits LimitsConfig `yaml:"limits"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxConcurrent is the maximum number of simultaneous in-flight
	// moderation requests. Requests beyond the limit receive 503.
	// Default: 256
	MaxConcurrent int `yaml:"max_concurrent"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS is enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Use ["*"] to allow all origins (not recommended for production).
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Content-Type", "X-Request-ID", "X-Client-Key", "X-Request-Deadline-Ms"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600 (1 hour)
	MaxAge int `yaml:"max_age"`
}

// BackendConfig contains configuration for one moderation backend kind.
// Each kind serves one or more deployed versions that the traffic router
// splits traffic across.
type BackendConfig struct {
	// Versions maps version names (e.g., "v1", "v2-canary") to their
	// endpoint configuration. At least one version is required.
	Versions map[string]BackendVersionConfig `yaml:"versions"`

	// Batch contains the batching window configuration for this kind.
	Batch BatchConfig `yaml:"batch"`
}

// BackendVersionConfig contains the endpoint configuration for a single
// deployed version of a backend.
type BackendVersionConfig struct {
	// BaseURL is the base URL for the backend version's inference endpoint.
	// Example: "http://safety-detector-v2:8001"
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-call deadline for requests to this version.
	// Calls exceeding it resolve to a Timeout outcome.
	// Default: 2s
	Timeout time.Duration `yaml:"timeout"`

	// SupportsBatch indicates the version exposes a native batch inference
	// endpoint. When false, batched calls are issued individually but
	// still concurrently.
	// Default: true
	SupportsBatch bool `yaml:"supports_batch"`
}

// BatchConfig contains the batching window parameters for one backend kind.
type BatchConfig struct {
	// Capacity is the maximum number of calls in one batch window.
	// Documented targets are 8, 16, or 32.
	// Default: 16
	Capacity int `yaml:"capacity"`

	// MaxWait is the maximum time a window stays open before dispatch.
	// Valid range: 50µs to 1s.
	// Default: 200µs
	MaxWait time.Duration `yaml:"max_wait"`
}

// RoutingConfig contains configuration for the traffic router.
type RoutingConfig struct {
	// Policy is the initial rollout policy: per backend kind, an ordered
	// list of version weights. Weights for a kind must sum to 100.
	Policy map[string][]VersionWeightConfig `yaml:"policy"`

	// PolicyFile is an optional path to a YAML file holding the rollout
	// policy. When set, the file takes precedence over the inline Policy
	// and is watched for changes when Watch is true.
	PolicyFile string `yaml:"policy_file"`

	// Watch enables automatic policy reload when PolicyFile changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Sticky contains sticky-session routing configuration.
	Sticky StickyConfig `yaml:"sticky"`
}

// VersionWeightConfig assigns a traffic share to one backend version.
type VersionWeightConfig struct {
	// Version is the backend version name. Must exist under the
	// corresponding backends.<kind>.versions entry.
	Version string `yaml:"version"`

	// Weight is the percentage of traffic routed to this version (0-100).
	Weight int `yaml:"weight"`

	// MinTrafficFloor is the minimum percentage this version must keep
	// while the rollout is active. Policy updates that would push the
	// version below its floor are rejected.
	// Default: 0
	MinTrafficFloor int `yaml:"min_traffic_floor"`
}

// StickyConfig contains sticky-session routing configuration.
// When enabled, repeat requests carrying the same client key are pinned to
// the version they were first assigned for as long as the policy snapshot
// that made the assignment stays active.
type StickyConfig struct {
	// Enabled controls whether sticky routing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// TTL is the time-to-live for sticky assignments (0 = snapshot lifetime).
	// Default: 30m
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries is the maximum number of sticky assignments kept
	// (0 = unlimited). The least recently used entry is evicted first.
	// Default: 100000
	MaxEntries int `yaml:"max_entries"`
}

// DecisionConfig contains the ensemble decision thresholds and weights.
// The cut points are deployment configuration, not a fixed contract: tune
// them per SLA without code changes.
type DecisionConfig struct {
	// SafetyReject is the safety-detector risk confidence at or above which
	// the safety factor votes REJECT.
	// Default: 0.85
	SafetyReject float64 `yaml:"safety_reject"`

	// SafetyEscalate is the safety-detector risk confidence at or above
	// which (but below SafetyReject) the safety factor votes ESCALATE.
	// Default: 0.6
	SafetyEscalate float64 `yaml:"safety_escalate"`

	// NSFWEscalate is the NSFW score above which the safety factor votes
	// ESCALATE even at low overall risk confidence.
	// Default: 0.3
	NSFWEscalate float64 `yaml:"nsfw_escalate"`

	// ContentConfidence is the classifier confidence below which the
	// content factor votes ESCALATE.
	// Default: 0.7
	ContentConfidence float64 `yaml:"content_confidence"`

	// TextConfidence is the average OCR confidence below which the text
	// factor votes ESCALATE.
	// Default: 0.6
	TextConfidence float64 `yaml:"text_confidence"`

	// BlockedKeywords are scanned (case-insensitively) in extracted text;
	// a match makes the text factor vote REJECT.
	BlockedKeywords []string `yaml:"blocked_keywords"`

	// SensitiveCategories are classifier class ids that make the content
	// factor vote REJECT.
	SensitiveCategories []int `yaml:"sensitive_categories"`

	// Weights maps backend kinds to their share of the final confidence
	// score. Missing kinds default to 1.0.
	Weights map[string]float64 `yaml:"weights"`
}

// AuditConfig contains configuration for decision audit recording.
type AuditConfig struct {
	// Enabled controls whether audit recording is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend specifies the storage backend for decision records.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains audit recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains retention pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains configuration for the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/decisions.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains configuration for the async audit recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains configuration for audit retention pruning.
type RetentionConfig struct {
	// RetentionDays is how many days of records to keep (0 = forever).
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// MaxRecords caps the total number of records (0 = unlimited).
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// Empty disables the scheduler.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json", "text".
	// Default: "json"
	Format string `yaml:"format"`

	// Output is the log destination: "stdout", "stderr", or a file path.
	// Default: "stdout"
	Output string `yaml:"output"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "aegis"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	// Default: "moderation"
	Subsystem string `yaml:"subsystem"`

	// Path is the HTTP path serving the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// RequestDurationBuckets are histogram buckets (seconds) for request
	// duration. Defaults are tuned for sub-second moderation pipelines.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// BackendLatencyBuckets are histogram buckets (seconds) for per-backend
	// call latency.
	BackendLatencyBuckets []float64 `yaml:"backend_latency_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName identifies this service in traces.
	// Default: "aegis"
	ServiceName string `yaml:"service_name"`

	// SampleRate is the trace sampling rate (0.0-1.0).
	// Default: 0.1
	SampleRate float64 `yaml:"sample_rate"`

	// Insecure disables TLS on the exporter connection.
	// Default: true
	Insecure bool `yaml:"insecure"`
}

// LimitsConfig contains request admission limits.
type LimitsConfig struct {
	// MaxImageBytes is the maximum accepted image size in bytes.
	// Default: 5242880 (5MB)
	MaxImageBytes int64 `yaml:"max_image_bytes"`

	// MaxBatchFiles is the maximum number of files per batch request.
	// Default: 10
	MaxBatchFiles int `yaml:"max_batch_files"`
}

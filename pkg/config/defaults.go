package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxConcurrent   = 256

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Backend defaults
	DefaultBackendTimeout       = 2 * time.Second
	DefaultBackendSupportsBatch = true
	DefaultBatchCapacity        = 16
	DefaultBatchMaxWait         = 200 * time.Microsecond
	MinBatchMaxWait             = 50 * time.Microsecond
	MaxBatchMaxWait             = time.Second

	// Routing defaults
	DefaultStickyEnabled    = false
	DefaultStickyTTL        = 30 * time.Minute
	DefaultStickyMaxEntries = 100000

	// Decision defaults (original deployment SLA targets)
	DefaultSafetyReject      = 0.85
	DefaultSafetyEscalate    = 0.6
	DefaultNSFWEscalate      = 0.3
	DefaultContentConfidence = 0.7
	DefaultTextConfidence    = 0.6

	// Audit defaults
	DefaultAuditEnabled              = true
	DefaultAuditBackend              = "sqlite"
	DefaultAuditSQLitePath           = "data/decisions.db"
	DefaultAuditSQLiteMaxOpenConns   = 10
	DefaultAuditSQLiteMaxIdleConns   = 5
	DefaultAuditSQLiteWALMode        = true
	DefaultAuditSQLiteBusyTimeout    = 5 * time.Second
	DefaultAuditRecorderAsyncBuffer  = 1000
	DefaultAuditRecorderWriteTimeout = 5 * time.Second
	DefaultAuditRetentionDays        = 90
	DefaultAuditRetentionMaxRecords  = int64(0)
	DefaultAuditRetentionSchedule    = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel      = "info"
	DefaultLoggingFormat     = "json"
	DefaultLoggingOutput     = "stdout"
	DefaultMetricsEnabled    = true
	DefaultMetricsNamespace  = "aegis"
	DefaultMetricsSubsystem  = "moderation"
	DefaultMetricsPath       = "/metrics"
	DefaultTracingEnabled    = false
	DefaultTracingEndpoint   = "localhost:4317"
	DefaultTracingService    = "aegis"
	DefaultTracingSampleRate = 0.1
	DefaultTracingInsecure   = true

	// Limits defaults
	DefaultMaxImageBytes = int64(5 * 1024 * 1024) // 5MB
	DefaultMaxBatchFiles = 10
)

// DefaultBlockedKeywords is the default blocked-keyword list scanned in
// extracted text.
var DefaultBlockedKeywords = []string{
	"violence", "weapon", "hate", "discrimination",
	"illegal", "drugs", "explicit", "inappropriate",
}

// DefaultFactorWeights are the default per-kind shares of the final
// confidence score.
var DefaultFactorWeights = map[string]float64{
	"classifier": 0.3,
	"safety":     0.5,
	"ocr":        0.2,
}

// ApplyDefaults fills in default values for any configuration fields that
// were not set. It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyBackendDefaults(cfg)
	applyRoutingDefaults(&cfg.Routing)
	applyDecisionDefaults(&cfg.Decision)
	applyAuditDefaults(&cfg.Audit)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyLimitsDefaults(&cfg.Limits)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.CORS.MaxAge == 0 {
		cfg.CORS.MaxAge = DefaultCORSMaxAge
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = []string{
			"Content-Type", "X-Request-ID", "X-Client-Key", "X-Request-Deadline-Ms",
		}
	}
}

func applyBackendDefaults(cfg *Config) {
	for kind, backend := range cfg.Backends {
		for name, version := range backend.Versions {
			if version.Timeout == 0 {
				version.Timeout = DefaultBackendTimeout
			}
			backend.Versions[name] = version
		}
		if backend.Batch.Capacity == 0 {
			backend.Batch.Capacity = DefaultBatchCapacity
		}
		if backend.Batch.MaxWait == 0 {
			backend.Batch.MaxWait = DefaultBatchMaxWait
		}
		cfg.Backends[kind] = backend
	}
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if cfg.Sticky.TTL == 0 {
		cfg.Sticky.TTL = DefaultStickyTTL
	}
	if cfg.Sticky.MaxEntries == 0 {
		cfg.Sticky.MaxEntries = DefaultStickyMaxEntries
	}
}

func applyDecisionDefaults(cfg *DecisionConfig) {
	if cfg.SafetyReject == 0 {
		cfg.SafetyReject = DefaultSafetyReject
	}
	if cfg.SafetyEscalate == 0 {
		cfg.SafetyEscalate = DefaultSafetyEscalate
	}
	if cfg.NSFWEscalate == 0 {
		cfg.NSFWEscalate = DefaultNSFWEscalate
	}
	if cfg.ContentConfidence == 0 {
		cfg.ContentConfidence = DefaultContentConfidence
	}
	if cfg.TextConfidence == 0 {
		cfg.TextConfidence = DefaultTextConfidence
	}
	if cfg.BlockedKeywords == nil {
		cfg.BlockedKeywords = append([]string(nil), DefaultBlockedKeywords...)
	}
	if cfg.Weights == nil {
		cfg.Weights = make(map[string]float64, len(DefaultFactorWeights))
		for kind, weight := range DefaultFactorWeights {
			cfg.Weights[kind] = weight
		}
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultAuditBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.SQLite.MaxOpenConns == 0 {
		cfg.SQLite.MaxOpenConns = DefaultAuditSQLiteMaxOpenConns
	}
	if cfg.SQLite.MaxIdleConns == 0 {
		cfg.SQLite.MaxIdleConns = DefaultAuditSQLiteMaxIdleConns
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Recorder.AsyncBuffer == 0 {
		cfg.Recorder.AsyncBuffer = DefaultAuditRecorderAsyncBuffer
	}
	if cfg.Recorder.WriteTimeout == 0 {
		cfg.Recorder.WriteTimeout = DefaultAuditRecorderWriteTimeout
	}
	if cfg.Retention.RetentionDays == 0 {
		cfg.Retention.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultAuditRetentionSchedule
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = DefaultLoggingOutput
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if len(cfg.Metrics.RequestDurationBuckets) == 0 {
		// Tuned for batched moderation pipelines (sub-ms queue, ms-scale calls)
		cfg.Metrics.RequestDurationBuckets = []float64{
			0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
		}
	}
	if len(cfg.Metrics.BackendLatencyBuckets) == 0 {
		cfg.Metrics.BackendLatencyBuckets = []float64{
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0,
		}
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = DefaultTracingSampleRate
	}
}

func applyLimitsDefaults(cfg *LimitsConfig) {
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.MaxBatchFiles == 0 {
		cfg.MaxBatchFiles = DefaultMaxBatchFiles
	}
}

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Canonical backend kinds served by the engine.
var knownKinds = []string{"classifier", "safety", "ocr"}

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateBackends(cfg.Backends)...)
	errs = append(errs, validateRouting(cfg)...)
	errs = append(errs, validateDecision(&cfg.Decision)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.MaxConcurrent < 1 {
		errs = append(errs, FieldError{
			Field:   "server.max_concurrent",
			Message: "max concurrent requests must be at least 1",
		})
	}

	return errs
}

// validateBackends validates backend configuration. All three canonical
// kinds must be configured with at least one version each.
func validateBackends(backends map[string]BackendConfig) []FieldError {
	var errs []FieldError

	for _, kind := range knownKinds {
		if _, ok := backends[kind]; !ok {
			errs = append(errs, FieldError{
				Field:   "backends." + kind,
				Message: "backend kind is required",
			})
		}
	}

	for kind, backend := range backends {
		if !isKnownKind(kind) {
			errs = append(errs, FieldError{
				Field:   "backends." + kind,
				Message: fmt.Sprintf("unknown backend kind (expected one of: %s)", strings.Join(knownKinds, ", ")),
			})
			continue
		}

		if len(backend.Versions) == 0 {
			errs = append(errs, FieldError{
				Field:   "backends." + kind + ".versions",
				Message: "at least one version is required",
			})
		}

		for name, version := range backend.Versions {
			field := fmt.Sprintf("backends.%s.versions.%s", kind, name)
			if version.BaseURL == "" {
				errs = append(errs, FieldError{
					Field:   field + ".base_url",
					Message: "base URL is required",
				})
			} else if _, err := url.Parse(version.BaseURL); err != nil {
				errs = append(errs, FieldError{
					Field:   field + ".base_url",
					Message: fmt.Sprintf("invalid URL: %v", err),
				})
			}
			if version.Timeout <= 0 {
				errs = append(errs, FieldError{
					Field:   field + ".timeout",
					Message: "timeout must be positive",
				})
			}
		}

		switch backend.Batch.Capacity {
		case 8, 16, 32:
		default:
			errs = append(errs, FieldError{
				Field:   "backends." + kind + ".batch.capacity",
				Message: "capacity must be one of 8, 16, 32",
			})
		}
		if backend.Batch.MaxWait < MinBatchMaxWait || backend.Batch.MaxWait > MaxBatchMaxWait {
			errs = append(errs, FieldError{
				Field:   "backends." + kind + ".batch.max_wait",
				Message: fmt.Sprintf("max wait must be between %s and %s", MinBatchMaxWait, MaxBatchMaxWait),
			})
		}
	}

	return errs
}

// validateRouting validates routing configuration. Every configured kind
// needs a policy whose weights sum to 100 and whose versions exist under
// the backend configuration.
func validateRouting(cfg *Config) []FieldError {
	var errs []FieldError

	// A policy file defers weight validation to load time
	if cfg.Routing.PolicyFile != "" {
		return errs
	}

	for kind := range cfg.Backends {
		if !isKnownKind(kind) {
			continue
		}
		weights, ok := cfg.Routing.Policy[kind]
		if !ok || len(weights) == 0 {
			errs = append(errs, FieldError{
				Field:   "routing.policy." + kind,
				Message: "routing policy is required for configured backend kind",
			})
			continue
		}

		total := 0
		for i, vw := range weights {
			field := fmt.Sprintf("routing.policy.%s[%d]", kind, i)
			if vw.Version == "" {
				errs = append(errs, FieldError{
					Field:   field + ".version",
					Message: "version name is required",
				})
				continue
			}
			if _, exists := cfg.Backends[kind].Versions[vw.Version]; !exists {
				errs = append(errs, FieldError{
					Field:   field + ".version",
					Message: fmt.Sprintf("version %q is not configured under backends.%s.versions", vw.Version, kind),
				})
			}
			if vw.Weight < 0 || vw.Weight > 100 {
				errs = append(errs, FieldError{
					Field:   field + ".weight",
					Message: "weight must be between 0 and 100",
				})
			}
			if vw.MinTrafficFloor < 0 || vw.MinTrafficFloor > vw.Weight {
				errs = append(errs, FieldError{
					Field:   field + ".min_traffic_floor",
					Message: "min traffic floor must be between 0 and the configured weight",
				})
			}
			total += vw.Weight
		}
		if total != 100 {
			errs = append(errs, FieldError{
				Field:   "routing.policy." + kind,
				Message: fmt.Sprintf("weights must sum to 100, got %d", total),
			})
		}
	}

	return errs
}

// validateDecision validates decision threshold configuration.
func validateDecision(cfg *DecisionConfig) []FieldError {
	var errs []FieldError

	check := func(field string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, FieldError{
				Field:   "decision." + field,
				Message: "threshold must be between 0 and 1",
			})
		}
	}
	check("safety_reject", cfg.SafetyReject)
	check("safety_escalate", cfg.SafetyEscalate)
	check("nsfw_escalate", cfg.NSFWEscalate)
	check("content_confidence", cfg.ContentConfidence)
	check("text_confidence", cfg.TextConfidence)

	if cfg.SafetyEscalate > cfg.SafetyReject {
		errs = append(errs, FieldError{
			Field:   "decision.safety_escalate",
			Message: "escalate threshold must not exceed reject threshold",
		})
	}

	for kind, weight := range cfg.Weights {
		if weight < 0 {
			errs = append(errs, FieldError{
				Field:   "decision.weights." + kind,
				Message: "weight must not be negative",
			})
		}
	}

	return errs
}

// validateAudit validates audit configuration.
func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "sqlite", "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("unknown backend %q (expected sqlite or memory)", cfg.Backend),
		})
	}

	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "audit.sqlite.path",
			Message: "database path is required",
		})
	}
	if cfg.Recorder.AsyncBuffer < 1 {
		errs = append(errs, FieldError{
			Field:   "audit.recorder.async_buffer",
			Message: "async buffer must be at least 1",
		})
	}
	if cfg.Retention.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.retention_days",
			Message: "retention days must not be negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (expected debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (expected json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_rate",
			Message: "sample rate must be between 0.0 and 1.0",
		})
	}

	return errs
}

// validateLimits validates request limit configuration.
func validateLimits(cfg *LimitsConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxImageBytes < 1 {
		errs = append(errs, FieldError{
			Field:   "limits.max_image_bytes",
			Message: "max image bytes must be at least 1",
		})
	}
	if cfg.MaxBatchFiles < 1 {
		errs = append(errs, FieldError{
			Field:   "limits.max_batch_files",
			Message: "max batch files must be at least 1",
		})
	}

	return errs
}

func isKnownKind(kind string) bool {
	for _, k := range knownKinds {
		if k == kind {
			return true
		}
	}
	return false
}

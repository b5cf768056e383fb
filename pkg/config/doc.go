// Package config provides configuration loading, validation, and defaults
// for Aegis.
//
// Configuration is defined in YAML and loaded from a single file. The root
// structure is Config, which contains sections for the HTTP server, the
// moderation backends and their batching windows, traffic routing, decision
// thresholds, audit storage, telemetry, and request limits.
//
// Loading sequence:
//  1. Read YAML file and expand ${ENV} references
//  2. Apply default values for unset fields
//  3. Apply AEGIS_* environment variable overrides (optional)
//  4. Validate the final configuration
//
// The rollout policy can live inline (routing.policy) or in a separate file
// (routing.policy_file) that PolicyWatcher hot-reloads on change.
package config

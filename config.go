// config.go: manager configuration, file loading, and environment overrides
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment override knobs. Each one, when set, wins over the value
// in the configuration ApplyEnvOverrides is called on. LoadManagerConfig
// applies them after reading the file; New does not apply them to a
// configuration passed in code or to the defaults.
const (
	EnvLogLevel        = "PLUGIN_MANAGER_LOG_LEVEL"
	EnvPollInterval    = "PLUGIN_MANAGER_POLL_INTERVAL"
	EnvAnalysisWorkers = "PLUGIN_MANAGER_ANALYSIS_WORKERS"
)

// DefaultPollInterval bounds the directory watcher's fallback poll so
// shutdown is observed promptly even when fsnotify delivers nothing.
const DefaultPollInterval = 500 * time.Millisecond

// ManagerConfig carries the tunable settings of a Manager.
//
// The topology settings (workers, blocked prefixes) are fixed at
// construction; the dynamic settings (log level, poll interval) may be
// hot-reloaded through a ConfigWatcher.
type ManagerConfig struct {
	// LogLevel names a minimum log level (debug, info, warn, error). It
	// is validated and hot-reloaded with the configuration; the manager
	// does not pass it to its Logger, so it does not filter output.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// PollInterval bounds the directory watcher poll fallback.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// AnalysisWorkers sizes the manager's dedicated analysis pool.
	// Zero selects the shared process-wide pool sized by
	// PLUGIN_MANAGER_MAX_THREADS.
	AnalysisWorkers int `json:"analysis_workers" yaml:"analysis_workers"`

	// BlockedPrefixes feed the default blocked-identity predicate.
	// Empty means the manager's own namespace only.
	BlockedPrefixes []string `json:"blocked_prefixes" yaml:"blocked_prefixes"`

	// ManifestNames are the file names recognized as plugin manifests
	// during discovery.
	ManifestNames []string `json:"manifest_names" yaml:"manifest_names"`
}

// DefaultManagerConfig returns the production defaults.
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		LogLevel:      "info",
		PollInterval:  DefaultPollInterval,
		ManifestNames: []string{"plugin.yaml", "plugin.yml"},
	}
}

// Validate checks the configuration for values the manager cannot run
// with.
func (c *ManagerConfig) Validate() error {
	if c.PollInterval <= 0 {
		return NewConfigValidationError("poll_interval must be positive", nil)
	}
	if c.AnalysisWorkers < 0 {
		return NewConfigValidationError("analysis_workers must not be negative", nil)
	}
	if len(c.ManifestNames) == 0 {
		return NewConfigValidationError("manifest_names must not be empty", nil)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return NewConfigValidationError("log_level must be one of debug, info, warn, error", nil)
	}
	return nil
}

// LoadManagerConfig reads a YAML configuration file, applies
// environment overrides, and validates the result. Fields absent from
// the file keep their defaults.
func LoadManagerConfig(path string) (*ManagerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigParseError(path, err)
	}

	cfg := DefaultManagerConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, NewConfigParseError(path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides folds the PLUGIN_MANAGER_* environment knobs into
// the configuration. Unparsable values are ignored.
func (c *ManagerConfig) ApplyEnvOverrides() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
	if raw := os.Getenv(EnvPollInterval); raw != "" {
		if interval, err := time.ParseDuration(raw); err == nil && interval > 0 {
			c.PollInterval = interval
		}
	}
	if raw := os.Getenv(EnvAnalysisWorkers); raw != "" {
		if workers, err := strconv.Atoi(raw); err == nil && workers >= 0 {
			c.AnalysisWorkers = workers
		}
	}
}

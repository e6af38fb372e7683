// config_watcher.go: hot reload of dynamic manager settings with Argus
//
// Only the dynamic settings are reloadable: log level and the watcher
// poll interval. A reloaded poll interval applies to roots watched
// after the reload; directory watchers already running keep the
// interval they started with. Topology settings (worker counts, blocked
// prefixes, manifest names) are fixed at manager construction and
// changes to them in the file are logged on reload and ignored.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// ConfigWatcher hot-reloads the dynamic subset of ManagerConfig from a
// YAML file using Argus file watching.
type ConfigWatcher struct {
	manager *Manager
	logger  Logger

	watcher    *argus.Watcher
	configPath string

	current atomic.Pointer[ManagerConfig]

	enabled  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewConfigWatcher creates a watcher over the given configuration file.
func NewConfigWatcher(manager *Manager, configPath string) (*ConfigWatcher, error) {
	if configPath == "" {
		return nil, NewConfigWatcherError("configuration path is empty", nil)
	}

	logger := manager.logger
	watcher := argus.New(argus.Config{
		PollInterval:         2 * time.Second,
		MaxWatchedFiles:      1,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, path string) {
			logger.Error("Configuration file watching error",
				"error", err,
				"file", path)
		},
	})

	return &ConfigWatcher{
		manager:    manager,
		logger:     logger,
		watcher:    watcher,
		configPath: configPath,
	}, nil
}

// Start loads the initial configuration, applies it, and begins
// watching for changes.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	if cw.stopped.Load() {
		return NewConfigWatcherError("configuration watcher has been stopped and cannot be restarted", nil)
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.enabled.CompareAndSwap(false, true) {
		return NewConfigWatcherError("configuration watcher is already running", nil)
	}

	initial, err := LoadManagerConfig(cw.configPath)
	if err != nil {
		cw.enabled.Store(false)
		return NewConfigWatcherError("failed to load initial configuration", err)
	}
	cw.apply(initial, nil)

	if err := cw.watcher.Watch(cw.configPath, cw.handleChange); err != nil {
		cw.enabled.Store(false)
		return NewConfigWatcherError("failed to watch configuration file", err)
	}
	if err := cw.watcher.Start(); err != nil {
		cw.enabled.Store(false)
		return NewConfigWatcherError("failed to start configuration watcher", err)
	}

	cw.logger.Info("Configuration hot reload enabled",
		"config_path", cw.configPath)
	return nil
}

// Stop permanently stops the watcher.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		cw.stopped.Store(true)
		cw.enabled.Store(false)
		if stopErr := cw.watcher.Stop(); stopErr != nil {
			err = NewConfigWatcherError("failed to stop configuration watcher", stopErr)
		}
	})
	return err
}

// Current returns the most recently applied configuration, or nil
// before the first load.
func (cw *ConfigWatcher) Current() *ManagerConfig {
	return cw.current.Load()
}

func (cw *ConfigWatcher) handleChange(event argus.ChangeEvent) {
	if !cw.enabled.Load() {
		return
	}
	if event.IsDelete {
		cw.logger.Warn("Configuration file deleted, keeping last applied settings",
			"config_path", cw.configPath)
		return
	}

	next, err := LoadManagerConfig(cw.configPath)
	if err != nil {
		cw.logger.Error("Configuration reload rejected",
			"config_path", cw.configPath,
			"error", err)
		return
	}
	cw.apply(next, cw.current.Load())
}

// apply installs the dynamic settings onto the manager and records the
// configuration as current. The manager's snapshot is never mutated in
// place: a copy carrying the new dynamic settings is swapped in
// atomically, so concurrent readers always see a consistent
// configuration. Static settings are always left untouched; on a
// reload (previous non-nil) those that differ from the running values
// are also logged. The initial apply from Start does not log them.
func (cw *ConfigWatcher) apply(next, previous *ManagerConfig) {
	running := cw.manager.config.Load()

	if previous != nil {
		if next.AnalysisWorkers != running.AnalysisWorkers {
			cw.logger.Warn("analysis_workers changed in file but is fixed at construction, ignoring",
				"running", running.AnalysisWorkers,
				"file", next.AnalysisWorkers)
		}
		if !slices.Equal(next.BlockedPrefixes, running.BlockedPrefixes) {
			cw.logger.Warn("blocked_prefixes changed in file but is fixed at construction, ignoring")
		}
		if !slices.Equal(next.ManifestNames, running.ManifestNames) {
			cw.logger.Warn("manifest_names changed in file but is fixed at construction, ignoring")
		}
	}

	updated := *running
	updated.LogLevel = next.LogLevel
	updated.PollInterval = next.PollInterval
	cw.manager.config.Store(&updated)
	cw.current.Store(&updated)

	cw.logger.Info("Configuration applied",
		"log_level", updated.LogLevel,
		"poll_interval", updated.PollInterval.String())
}

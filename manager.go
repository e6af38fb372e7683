// manager.go: the plugin manager surface tying registry, resolver,
// lifecycle, discovery, and configuration together
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultBlockedPrefix is the namespace prefix rejected by the default
// blocked-identity predicate: the manager refuses to host plugins that
// claim its own namespace.
const DefaultBlockedPrefix = "pluginhost."

// BlockedPredicate decides whether an identity is rejected before
// descriptor ingestion.
type BlockedPredicate func(Identity) bool

// Manager hosts plugins discovered at runtime: it registers
// descriptors, resolves their dependency graphs, and drives the
// lifecycle of every linkable plugin.
//
// A Manager is safe for concurrent use. Discovery runs on a bounded
// analysis pool; registry mutation is serialized through the registry
// write lock; Initialize and Shutdown run on the caller's goroutine.
//
// Example usage:
//
//	manager, err := New(WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer manager.Shutdown(context.Background())
//
//	desc, _ := NewDescriptor("cache", "1.0").Build()
//	if _, _, err := manager.Insert(desc); err != nil {
//	    return err
//	}
//	failures, err := manager.Initialize(ctx)
type Manager struct {
	config  atomic.Pointer[ManagerConfig]
	logger  Logger
	metrics *ManagerMetrics
	events  *eventEmitter

	registry *Registry
	resolver *Resolver

	blocked BlockedPredicate

	pool     *analysisPool
	ownsPool bool

	watchersMu   sync.Mutex
	watchers     map[string]*directoryWatcher
	manifestSeen manifestTracker

	configWatcher *ConfigWatcher

	initMu      sync.Mutex
	initOrderMu sync.Mutex
	initOrder   []*PluginRecord

	shutdown     atomic.Bool
	shutdownOnce sync.Once
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger sets the logger. Accepts anything NewLogger accepts.
func WithLogger(logger any) Option {
	return func(m *Manager) {
		m.logger = NewLogger(logger)
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg *ManagerConfig) Option {
	return func(m *Manager) {
		m.config.Store(cfg)
	}
}

// WithBlockedPredicate replaces the default blocked-identity predicate.
func WithBlockedPredicate(pred BlockedPredicate) Option {
	return func(m *Manager) {
		m.blocked = pred
	}
}

// WithWorkers gives the manager a dedicated analysis pool of the given
// size instead of the shared process-wide pool. The dedicated pool is
// drained at shutdown.
func WithWorkers(size int) Option {
	return func(m *Manager) {
		m.pool = newAnalysisPool(size, m.logger)
		m.ownsPool = true
	}
}

// WithEventHandler registers a lifecycle event handler.
func WithEventHandler(handler EventHandler) Option {
	return func(m *Manager) {
		m.events.addHandler(handler)
	}
}

// New creates a plugin manager.
func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		logger:   DefaultLogger(),
		metrics:  &ManagerMetrics{},
		watchers: make(map[string]*directoryWatcher),
	}
	m.events = newEventEmitter(m.logger)

	for _, opt := range opts {
		opt(m)
	}

	if m.config.Load() == nil {
		m.config.Store(DefaultManagerConfig())
	}
	cfg := m.config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m.blocked == nil {
		m.blocked = DefaultBlockedPredicate(cfg.BlockedPrefixes...)
	}
	if m.pool == nil {
		if cfg.AnalysisWorkers > 0 {
			m.pool = newAnalysisPool(cfg.AnalysisWorkers, m.logger)
			m.ownsPool = true
		} else {
			m.pool = sharedAnalysisPool()
		}
	}
	m.events.logger = m.logger

	m.registry = NewRegistry(m.logger, m.metrics, m.events)
	m.resolver = NewResolver(m.registry, m.logger, m.metrics, m.events)

	return m, nil
}

// DefaultBlockedPredicate builds the default predicate: identities
// carrying any of the given prefixes are rejected. With no prefixes it
// falls back to the manager's own namespace.
func DefaultBlockedPredicate(prefixes ...string) BlockedPredicate {
	if len(prefixes) == 0 {
		prefixes = []string{DefaultBlockedPrefix}
	}
	return func(id Identity) bool {
		for _, prefix := range prefixes {
			if strings.HasPrefix(string(id), prefix) {
				return true
			}
		}
		return false
	}
}

// Insert registers a descriptor with the manager.
//
// The blocked predicate runs before the registry sees the descriptor;
// blocked identities are logged and reported with InsertBlocked and no
// error. Duplicate identities keep the earlier record and return the
// duplicate error alongside InsertDuplicate.
func (m *Manager) Insert(desc *Descriptor) (*PluginRecord, InsertOutcome, error) {
	if m.shutdown.Load() {
		return nil, InsertBlocked, NewShuttingDownError("insert")
	}
	if m.blocked(desc.ID()) {
		m.metrics.BlockedInserts.Add(1)
		m.logger.Warn("Plugin identity blocked",
			"plugin_id", string(desc.ID()),
			"version", desc.Version())
		return nil, InsertBlocked, nil
	}
	return m.registry.Insert(desc)
}

// SatisfyPass runs one bulk resolution sweep and reports whether the
// pending request list is empty afterwards.
func (m *Manager) SatisfyPass() bool {
	return m.resolver.SatisfyPass()
}

// Lookup returns the record registered under the given identity.
func (m *Manager) Lookup(id Identity) (*PluginRecord, bool) {
	return m.registry.Lookup(id)
}

// Records returns every registered record in insertion order.
func (m *Manager) Records() []*PluginRecord {
	return m.registry.Values()
}

// Remove is reserved for a future version; it always reports
// Unsupported in v1.
func (m *Manager) Remove(id Identity) error {
	return m.registry.Remove(id)
}

// Config returns the current configuration snapshot. Hot reload
// replaces the snapshot atomically rather than mutating it, so callers
// must treat the result as read-only.
func (m *Manager) Config() *ManagerConfig {
	return m.config.Load()
}

// Metrics returns a point-in-time snapshot of the manager counters.
func (m *Manager) Metrics() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// AddEventHandler registers a lifecycle event handler after
// construction.
func (m *Manager) AddEventHandler(handler EventHandler) {
	m.events.addHandler(handler)
}

// Watch starts discovery over a directory root: an initial scan plus a
// watcher that picks up manifests added later.
func (m *Manager) Watch(root string) error {
	if m.shutdown.Load() {
		return NewShuttingDownError("watch")
	}

	m.watchersMu.Lock()
	defer m.watchersMu.Unlock()
	if _, ok := m.watchers[root]; ok {
		return NewWatcherError("root is already watched: "+root, nil)
	}

	watcher, err := newDirectoryWatcher(root, m, m.Config().PollInterval, m.logger)
	if err != nil {
		return err
	}
	m.watchers[root] = watcher
	watcher.start()

	m.scanRoot(root)
	return nil
}

// Unwatch stops discovery over a previously watched root. Plugins
// already registered from that root stay registered.
func (m *Manager) Unwatch(root string) error {
	m.watchersMu.Lock()
	defer m.watchersMu.Unlock()
	watcher, ok := m.watchers[root]
	if !ok {
		return NewWatcherError("root is not watched: "+root, nil)
	}
	watcher.stop()
	delete(m.watchers, root)
	return nil
}

// WatchConfig starts hot-reload of dynamic manager settings from the
// given configuration file.
func (m *Manager) WatchConfig(ctx context.Context, path string) error {
	if m.shutdown.Load() {
		return NewShuttingDownError("watch config")
	}
	if m.configWatcher != nil {
		return NewConfigWatcherError("configuration watcher is already running", nil)
	}
	watcher, err := NewConfigWatcher(m, path)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	m.configWatcher = watcher
	return nil
}

// Shutdown stops discovery, deactivates active plugins in reverse
// initialization order, and drains the manager's own resources.
// Shutdown is idempotent; Insert, Initialize, Watch, and WatchConfig
// called after it report ShuttingDown.
func (m *Manager) Shutdown(ctx context.Context) error {
	var firstErr error
	m.shutdownOnce.Do(func() {
		m.shutdown.Store(true)
		m.logger.Info("Plugin manager shutting down")

		m.watchersMu.Lock()
		for root, watcher := range m.watchers {
			watcher.stop()
			delete(m.watchers, root)
		}
		m.watchersMu.Unlock()

		if m.configWatcher != nil {
			if err := m.configWatcher.Stop(); err != nil {
				m.logger.Warn("Configuration watcher stop failed", "error", err)
			}
		}

		if m.ownsPool {
			m.pool.Close()
		}

		for _, err := range m.deactivateAll(ctx) {
			if firstErr == nil {
				firstErr = err
			}
		}
		m.logger.Info("Plugin manager shutdown complete")
	})
	return firstErr
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}

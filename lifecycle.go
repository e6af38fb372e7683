// lifecycle.go: topological initialization and reverse-order shutdown
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
)

// InitFailure reports one plugin whose activation did not complete
// during Initialize, together with the error from the last attempt.
type InitFailure struct {
	Plugin  Identity
	Version string
	Err     error
}

// Initialize drives every linkable plugin through construction and
// activation.
//
// The sequence is: one resolution sweep, one linkability pass, then a
// deterministic children-first topological walk over the linkable
// records. Dependencies are constructed and activated before their
// dependents; inside a cycle the insertion order decides. Library
// plugins are never constructed or activated but hold their place in
// the ordering.
//
// A construction failure aborts initialization immediately. Activation
// failures are collected and retried exactly once at the end, resuming
// from the hook that failed; plugins still failing after the retry are
// returned in the failure list alongside an activation error.
//
// Initialize blocks until every linkable plugin completes; callers
// bound the wait through ctx handed to constructors and hooks.
func (m *Manager) Initialize(ctx context.Context, args ...any) ([]InitFailure, error) {
	if m.shutdown.Load() {
		return nil, NewShuttingDownError("initialize")
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.resolver.SatisfyPass()
	linkable := m.resolver.LinkabilityPass()
	order := initializationOrder(linkable)

	var failures []InitFailure
	for _, record := range order {
		if !record.Descriptor().ShouldInitialize() {
			m.logger.Debug("Skipping library plugin",
				"plugin_id", string(record.ID()))
			continue
		}
		if record.IsActive() {
			continue
		}

		if !record.IsConstructed() {
			instance, err := record.construct(ctx, args...)
			if err != nil {
				m.metrics.LifecycleFailures.Add(1)
				m.events.emit(EventPluginFailed, record, err)
				m.logger.Error("Plugin construction failed, aborting initialization",
					"plugin_id", string(record.ID()),
					"error", err)
				return failures, err
			}
			m.metrics.RecordsConstructed.Add(1)
			m.events.emit(EventPluginConstructed, record, nil)
			m.logger.Debug("Plugin constructed",
				"plugin_id", string(record.ID()),
				"instance_type", typeName(instance))
		}

		if err := record.callActivators(ctx, args...); err != nil {
			m.metrics.LifecycleFailures.Add(1)
			m.events.emit(EventPluginFailed, record, err)
			m.logger.Warn("Plugin activation failed, will retry once",
				"plugin_id", string(record.ID()),
				"error", err)
			failures = append(failures, InitFailure{
				Plugin:  record.ID(),
				Version: record.Version(),
				Err:     err,
			})
			continue
		}
		m.noteActivated(record)
	}

	// Stopgap until plugin removal exists: failed activations get one
	// more attempt, resuming from the hook that failed.
	remaining := failures[:0]
	for _, failure := range failures {
		record, ok := m.registry.Lookup(failure.Plugin)
		if !ok {
			remaining = append(remaining, failure)
			continue
		}
		if err := record.callActivators(ctx, args...); err != nil {
			m.logger.Warn("Plugin activation retry failed",
				"plugin_id", string(failure.Plugin),
				"error", err)
			failure.Err = err
			remaining = append(remaining, failure)
			continue
		}
		m.noteActivated(record)
	}

	if len(remaining) > 0 {
		return remaining, NewActivationError(remaining[0].Plugin, remaining[0].Err)
	}
	return nil, nil
}

func (m *Manager) noteActivated(record *PluginRecord) {
	record.markActive(true)
	m.metrics.RecordsActivated.Add(1)
	m.events.emit(EventPluginActivated, record, nil)
	m.logger.Info("Plugin active",
		"plugin_id", string(record.ID()),
		"version", record.Version())

	m.initOrderMu.Lock()
	m.initOrder = append(m.initOrder, record)
	m.initOrderMu.Unlock()
}

// initializationOrder emits a children-first topological order over the
// linkable records.
//
// The outer walk follows registry insertion order, which makes the
// output deterministic; cycles collapse into the order the DFS first
// enters them, with each member appearing exactly once. Only linkable
// bindings are followed: an optional dependency that resolved but never
// became linkable does not drag its subtree in.
func initializationOrder(linkable []*PluginRecord) []*PluginRecord {
	order := make([]*PluginRecord, 0, len(linkable))
	visited := make(map[Identity]struct{}, len(linkable))

	var visit func(r *PluginRecord)
	visit = func(r *PluginRecord) {
		if _, seen := visited[r.ID()]; seen {
			return
		}
		visited[r.ID()] = struct{}{}
		for _, dep := range r.ResolvedDeps() {
			if dep.IsLinkable() {
				visit(dep)
			}
		}
		order = append(order, r)
	}

	for _, r := range linkable {
		visit(r)
	}
	return order
}

// deactivateAll walks the activated plugins in reverse initialization
// order and runs their deactivator hooks. Failures are logged and
// collected; deactivation continues past them.
func (m *Manager) deactivateAll(ctx context.Context) []error {
	m.initOrderMu.Lock()
	activated := make([]*PluginRecord, len(m.initOrder))
	copy(activated, m.initOrder)
	m.initOrderMu.Unlock()

	var errs []error
	for i := len(activated) - 1; i >= 0; i-- {
		record := activated[i]
		if !record.IsActive() {
			continue
		}
		if err := record.callDeactivators(ctx); err != nil {
			m.logger.Warn("Plugin deactivation failed",
				"plugin_id", string(record.ID()),
				"error", err)
			errs = append(errs, err)
			continue
		}
		record.markActive(false)
		m.metrics.RecordsDeactivated.Add(1)
		m.events.emit(EventPluginDeactivated, record, nil)
	}
	return errs
}

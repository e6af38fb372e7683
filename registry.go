// registry.go: the identity-to-record arena and the pending request list
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync"
)

// InsertOutcome classifies the result of a registry insert.
type InsertOutcome uint8

const (
	// InsertAccepted means a new record was created.
	InsertAccepted InsertOutcome = iota

	// InsertDuplicate means a record with the same identity already
	// exists; the descriptor was discarded.
	InsertDuplicate

	// InsertBlocked means the identity was rejected by the blocked
	// predicate before reaching the registry.
	InsertBlocked
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertAccepted:
		return "accepted"
	case InsertDuplicate:
		return "duplicate"
	case InsertBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Registry owns every plugin record and the list of pending dependency
// requests.
//
// Records live in an arena slice; the index map translates identities
// to arena positions. Records reference each other directly, but the
// arena keeps the graph expressible even when bindings form cycles.
// Insertion order is the canonical determinism source: every sweep and
// every topological emission iterates it.
type Registry struct {
	logger  Logger
	metrics *ManagerMetrics
	events  *eventEmitter

	// mu guards records and index. Insert is the only writer.
	mu      sync.RWMutex
	records []*PluginRecord
	index   map[Identity]int

	// pendingMu guards pending. It nests strictly below mu.
	pendingMu sync.RWMutex
	pending   []*DependencyRequest

	// inserted is signalled (non-blocking) after every successful
	// insert so sweeps waiting for new arrivals can wake up without the
	// release-and-reacquire pattern.
	inserted chan struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry(logger Logger, metrics *ManagerMetrics, events *eventEmitter) *Registry {
	if logger == nil {
		logger = DefaultLogger()
	}
	if metrics == nil {
		metrics = &ManagerMetrics{}
	}
	if events == nil {
		events = newEventEmitter(logger)
	}
	return &Registry{
		logger:   logger,
		metrics:  metrics,
		events:   events,
		index:    make(map[Identity]int),
		inserted: make(chan struct{}, 1),
	}
}

// Insert adds a descriptor to the registry.
//
// The identity check, record creation, and request emission form one
// critical section under the registry write lock, so concurrent inserts
// are linearizable and a record is never visible without its requests.
//
// A duplicate identity leaves the registry untouched: the outcome is
// InsertDuplicate, the returned record is the existing one, and the
// error carries both versions.
func (reg *Registry) Insert(desc *Descriptor) (*PluginRecord, InsertOutcome, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if pos, ok := reg.index[desc.ID()]; ok {
		existing := reg.records[pos]
		reg.metrics.DuplicateInserts.Add(1)
		reg.logger.Warn("Duplicate plugin identity rejected",
			"plugin_id", string(desc.ID()),
			"existing_version", existing.Version(),
			"rejected_version", desc.Version())
		return existing, InsertDuplicate, NewDuplicateIDError(desc.ID(), existing.Version(), desc.Version())
	}

	record := newPluginRecord(desc, reg.logger)
	reg.index[desc.ID()] = len(reg.records)
	reg.records = append(reg.records, record)

	requests := record.emitRequests()
	reg.pendingMu.Lock()
	reg.pending = append(reg.pending, requests...)
	reg.pendingMu.Unlock()

	reg.metrics.RecordsInserted.Add(1)
	reg.metrics.RequestsEmitted.Add(int64(len(requests)))
	reg.events.emit(EventPluginRegistered, record, nil)
	reg.logger.Debug("Plugin registered",
		"plugin_id", string(desc.ID()),
		"version", desc.Version(),
		"pending_requests", len(requests))

	select {
	case reg.inserted <- struct{}{}:
	default:
	}

	return record, InsertAccepted, nil
}

// Lookup returns the record for the given identity.
func (reg *Registry) Lookup(id Identity) (*PluginRecord, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	pos, ok := reg.index[id]
	if !ok {
		return nil, false
	}
	return reg.records[pos], true
}

// Values returns every record in insertion order.
func (reg *Registry) Values() []*PluginRecord {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*PluginRecord, len(reg.records))
	copy(out, reg.records)
	return out
}

// Len returns the number of registered records.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.records)
}

// Remove is reserved: in-place removal needs a desatisfy cascade across
// every request the record satisfied, which v1 does not implement.
func (reg *Registry) Remove(id Identity) error {
	return NewUnsupportedError("registry remove")
}

// PendingRequests returns a snapshot of the pending request list.
func (reg *Registry) PendingRequests() []*DependencyRequest {
	reg.pendingMu.RLock()
	defer reg.pendingMu.RUnlock()
	out := make([]*DependencyRequest, len(reg.pending))
	copy(out, reg.pending)
	return out
}

// Inserted exposes the insert notification channel. The channel carries
// at most one buffered signal; receivers treat it as a level trigger.
func (reg *Registry) Inserted() <-chan struct{} {
	return reg.inserted
}

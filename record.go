// record.go: mutable per-plugin runtime state
//
// A PluginRecord carries everything that changes after a descriptor is
// registered: resolved dependency bindings, the resolved parent, the
// sticky linkable flag, the construction slot, and the active flag.
// Each concern is guarded by its own lock; the acquisition order is
// parent, then linkability, then dependencies, then construction, and
// always below the registry and pending-request locks.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// PluginRecord is the mutable runtime state of one registered plugin.
//
// Records are created exclusively by the registry and live until
// manager shutdown. Records reference each other through dependency
// bindings; cycles among bindings are expected and handled by the
// linkability pass.
type PluginRecord struct {
	desc   *Descriptor
	logger Logger

	// parentMu guards resolvedParent.
	parentMu       sync.Mutex
	resolvedParent *PluginRecord

	// linkMu guards linkable.
	linkMu   sync.RWMutex
	linkable bool

	// depsMu guards depOrder and depIndex. Insertion order is the
	// discovery order of the bindings, which downstream iteration relies on.
	depsMu   sync.RWMutex
	depOrder []Identity
	depIndex map[Identity]*PluginRecord

	// requiredDepIDs is the frozen subset of declared dependencies with
	// Required set; computed once at record creation, read-only after.
	requiredDepIDs map[Identity]struct{}

	// constructMu guards instance and constructed.
	constructMu sync.Mutex
	constructed bool
	instance    any

	active atomic.Bool

	// satisfiedMu guards satisfiedRequests, the back-references to
	// requests this record satisfied. Removal logic needs them.
	satisfiedMu       sync.Mutex
	satisfiedRequests []*DependencyRequest

	// Hook lists are sorted lazily at first use and memoized, together
	// with the resume index for failure retry.
	hooksOnce         sync.Once
	sortedActivators  []HookEntry
	sortedDeactivator []HookEntry
	activatorResume   int
	deactivatorResume int
	hookMu            sync.Mutex
}

// PluginHandle is the default instance produced when a descriptor
// declares no constructor, typically for manifest-discovered plugins
// whose behavior lives entirely in hooks.
type PluginHandle struct {
	ID      Identity
	Version string
}

func newPluginRecord(desc *Descriptor, logger Logger) *PluginRecord {
	required := make(map[Identity]struct{})
	for _, dep := range desc.Dependencies() {
		if dep.Required {
			required[dep.ID] = struct{}{}
		}
	}
	return &PluginRecord{
		desc:           desc,
		logger:         logger,
		depIndex:       make(map[Identity]*PluginRecord),
		requiredDepIDs: required,
	}
}

// ID returns the plugin identity.
func (r *PluginRecord) ID() Identity { return r.desc.ID() }

// Version returns the plugin version string.
func (r *PluginRecord) Version() string { return r.desc.Version() }

// Descriptor returns the immutable descriptor behind this record.
func (r *PluginRecord) Descriptor() *Descriptor { return r.desc }

// emitRequests creates the dependency requests this record needs: one
// per declared dependency plus one for the parent when declared. Called
// exactly once, inside the registry's insert critical section.
func (r *PluginRecord) emitRequests() []*DependencyRequest {
	deps := r.desc.Dependencies()
	requests := make([]*DependencyRequest, 0, len(deps)+1)
	for _, dep := range deps {
		requests = append(requests, newDependencyRequest(r, dep, RequestRegular))
	}
	if parentID, ok := r.desc.ParentID(); ok {
		requests = append(requests, newDependencyRequest(r, DeclaredDep{
			ID:       parentID,
			Range:    AnyVersion(),
			Required: true,
		}, RequestParent))
	}
	return requests
}

// trySatisfyRequest offers this record as a candidate for the request.
func (r *PluginRecord) trySatisfyRequest(q *DependencyRequest) bool {
	return q.trySatisfy(r)
}

// bindDependency binds the candidate into the resolved dependency map.
//
// If a binding for the same identity already exists (the parent slot
// inserts into the map too), the bind only succeeds when the existing
// binding's version matches the wanted range; the existing binding is
// then reused and returned.
func (r *PluginRecord) bindDependency(candidate *PluginRecord, want VersionRange) (*PluginRecord, bool) {
	r.depsMu.Lock()
	defer r.depsMu.Unlock()

	if existing, ok := r.depIndex[candidate.ID()]; ok {
		if existing == candidate || want.Matches(existing.Version()) {
			return existing, true
		}
		return nil, false
	}
	r.depIndex[candidate.ID()] = candidate
	r.depOrder = append(r.depOrder, candidate.ID())
	return candidate, true
}

// bindParent binds the candidate as the resolved parent. When the
// dependency map already carries a binding for the parent identity,
// that binding is reused for the parent slot; otherwise the candidate
// is inserted into the map as well.
func (r *PluginRecord) bindParent(candidate *PluginRecord) (*PluginRecord, bool) {
	r.parentMu.Lock()
	defer r.parentMu.Unlock()

	if r.resolvedParent != nil {
		return nil, false
	}

	r.depsMu.Lock()
	bound, ok := r.depIndex[candidate.ID()]
	if !ok {
		r.depIndex[candidate.ID()] = candidate
		r.depOrder = append(r.depOrder, candidate.ID())
		bound = candidate
	}
	r.depsMu.Unlock()

	r.resolvedParent = bound
	return bound, true
}

func (r *PluginRecord) unbindParent() {
	r.parentMu.Lock()
	defer r.parentMu.Unlock()
	r.resolvedParent = nil
}

func (r *PluginRecord) unbindDependency(id Identity) {
	r.depsMu.Lock()
	defer r.depsMu.Unlock()
	if _, ok := r.depIndex[id]; !ok {
		return
	}
	delete(r.depIndex, id)
	for i, existing := range r.depOrder {
		if existing == id {
			r.depOrder = append(r.depOrder[:i], r.depOrder[i+1:]...)
			break
		}
	}
}

func (r *PluginRecord) noteSatisfiedRequest(q *DependencyRequest) {
	r.satisfiedMu.Lock()
	defer r.satisfiedMu.Unlock()
	r.satisfiedRequests = append(r.satisfiedRequests, q)
}

// ResolvedParent returns the bound parent record, or nil.
func (r *PluginRecord) ResolvedParent() *PluginRecord {
	r.parentMu.Lock()
	defer r.parentMu.Unlock()
	return r.resolvedParent
}

// ResolvedDep returns the binding for the given identity, if present.
func (r *PluginRecord) ResolvedDep(id Identity) (*PluginRecord, bool) {
	r.depsMu.RLock()
	defer r.depsMu.RUnlock()
	dep, ok := r.depIndex[id]
	return dep, ok
}

// ResolvedDeps returns the bound dependency records in binding order.
func (r *PluginRecord) ResolvedDeps() []*PluginRecord {
	r.depsMu.RLock()
	defer r.depsMu.RUnlock()
	out := make([]*PluginRecord, 0, len(r.depOrder))
	for _, id := range r.depOrder {
		out = append(out, r.depIndex[id])
	}
	return out
}

// IsResolved reports whether the parent (when declared) and every
// required dependency are bound. Optional dependencies never block
// resolution.
func (r *PluginRecord) IsResolved() bool {
	if _, hasParent := r.desc.ParentID(); hasParent {
		if r.ResolvedParent() == nil {
			return false
		}
	}

	r.depsMu.RLock()
	defer r.depsMu.RUnlock()
	for id := range r.requiredDepIDs {
		if _, ok := r.depIndex[id]; !ok {
			return false
		}
	}
	return true
}

// IsLinkable reports the sticky linkable flag. The flag is monotonic:
// once set it never reverts.
func (r *PluginRecord) IsLinkable() bool {
	r.linkMu.RLock()
	defer r.linkMu.RUnlock()
	return r.linkable
}

func (r *PluginRecord) markLinkable() {
	r.linkMu.Lock()
	r.linkable = true
	r.linkMu.Unlock()
}

// IsConstructed reports whether the construction slot is filled.
func (r *PluginRecord) IsConstructed() bool {
	r.constructMu.Lock()
	defer r.constructMu.Unlock()
	return r.constructed
}

// Instance returns the constructed instance, or nil before construction.
func (r *PluginRecord) Instance() any {
	r.constructMu.Lock()
	defer r.constructMu.Unlock()
	return r.instance
}

// IsActive reports whether all activator hooks have completed.
func (r *PluginRecord) IsActive() bool {
	return r.active.Load()
}

func (r *PluginRecord) markActive(active bool) {
	r.active.Store(active)
}

// construct fills the construction slot, holding the record's
// construction lock throughout.
//
// Constructing an unlinkable record is an error. Constructing twice is
// tolerated: the existing instance is returned and a warning logged.
func (r *PluginRecord) construct(ctx context.Context, args ...any) (any, error) {
	// Linkability is checked before taking the construction lock to keep
	// the lock order linkability-before-construction; the flag is
	// monotonic, so the check cannot go stale.
	if !r.IsLinkable() {
		return nil, NewUnlinkableError(r.ID())
	}

	r.constructMu.Lock()
	defer r.constructMu.Unlock()
	if r.constructed {
		r.logger.Warn("Plugin already constructed, returning existing instance",
			"plugin_id", string(r.ID()))
		return r.instance, nil
	}

	var instance any
	if fn := r.desc.construct; fn != nil {
		built, err := fn(ctx, args...)
		if err != nil {
			return nil, NewConstructionError(r.ID(), err)
		}
		instance = built
	} else {
		instance = &PluginHandle{ID: r.ID(), Version: r.Version()}
	}

	r.instance = instance
	r.constructed = true
	return instance, nil
}

// sortHooks memoizes the activator and deactivator lists, ordered by
// (priority, declaration index) with stable ties.
func (r *PluginRecord) sortHooks() {
	r.hooksOnce.Do(func() {
		r.sortedActivators = append([]HookEntry(nil), r.desc.activators...)
		sort.SliceStable(r.sortedActivators, func(i, j int) bool {
			return r.sortedActivators[i].Priority < r.sortedActivators[j].Priority
		})
		r.sortedDeactivator = append([]HookEntry(nil), r.desc.deactivators...)
		sort.SliceStable(r.sortedDeactivator, func(i, j int) bool {
			return r.sortedDeactivator[i].Priority < r.sortedDeactivator[j].Priority
		})
	})
}

// callActivators runs the activator hooks in order. On failure the index
// reached is remembered; a subsequent call resumes from that index
// rather than re-running hooks that already completed.
func (r *PluginRecord) callActivators(ctx context.Context, args ...any) error {
	r.sortHooks()
	r.hookMu.Lock()
	defer r.hookMu.Unlock()

	for r.activatorResume < len(r.sortedActivators) {
		entry := r.sortedActivators[r.activatorResume]
		if err := entry.Fn(ctx, args...); err != nil {
			return NewActivationError(r.ID(), err)
		}
		r.activatorResume++
	}
	return nil
}

// callDeactivators mirrors callActivators for the deactivator list.
func (r *PluginRecord) callDeactivators(ctx context.Context, args ...any) error {
	r.sortHooks()
	r.hookMu.Lock()
	defer r.hookMu.Unlock()

	for r.deactivatorResume < len(r.sortedDeactivator) {
		entry := r.sortedDeactivator[r.deactivatorResume]
		if err := entry.Fn(ctx, args...); err != nil {
			return NewDeactivationError(r.ID(), err)
		}
		r.deactivatorResume++
	}
	return nil
}

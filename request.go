// request.go: outstanding dependency-binding intents between plugin records
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import "sync"

// RequestKind distinguishes the two dependency-request subtypes.
type RequestKind uint8

const (
	// RequestRegular binds the satisfier into the requestor's resolved
	// dependency map.
	RequestRegular RequestKind = iota

	// RequestParent binds the satisfier as the requestor's parent and
	// mirrors it into the dependency map.
	RequestParent
)

func (k RequestKind) String() string {
	if k == RequestParent {
		return "parent"
	}
	return "regular"
}

// RequestStatus is the observable state of a DependencyRequest.
type RequestStatus uint8

const (
	// RequestPending means no satisfier has been bound yet.
	RequestPending RequestStatus = iota

	// RequestSatisfied means a satisfier is bound.
	RequestSatisfied
)

// DependencyRequest is an outstanding "need X, version in R" emitted by
// a plugin record when it enters the registry. A request is satisfied by
// binding exactly one candidate record; the status is derived from the
// satisfier field.
type DependencyRequest struct {
	requestor *PluginRecord
	want      DeclaredDep
	kind      RequestKind

	mu        sync.Mutex
	satisfier *PluginRecord
}

func newDependencyRequest(requestor *PluginRecord, want DeclaredDep, kind RequestKind) *DependencyRequest {
	return &DependencyRequest{requestor: requestor, want: want, kind: kind}
}

// Requestor returns the identity of the record that emitted the request.
func (q *DependencyRequest) Requestor() Identity { return q.requestor.ID() }

// Want returns the dependency declaration the request is trying to bind.
func (q *DependencyRequest) Want() DeclaredDep { return q.want }

// Kind returns the request subtype.
func (q *DependencyRequest) Kind() RequestKind { return q.kind }

// Status derives the request state from the satisfier binding.
func (q *DependencyRequest) Status() RequestStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.satisfier != nil {
		return RequestSatisfied
	}
	return RequestPending
}

// Satisfier returns the bound satisfier record, or nil while pending.
func (q *DependencyRequest) Satisfier() *PluginRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.satisfier
}

// trySatisfy attempts to bind the candidate to this request.
//
// The bind succeeds iff the request is still pending, the candidate's
// identity equals the wanted identity, the candidate's version is inside
// the wanted range, and the subtype-specific apply succeeds. The bound
// satisfier may differ from the candidate when the requestor already
// carries a matching binding for the same identity; in that case the
// existing binding is reused.
func (q *DependencyRequest) trySatisfy(candidate *PluginRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.satisfier != nil {
		return false
	}
	if candidate.ID() != q.want.ID {
		return false
	}
	if !q.want.Range.Matches(candidate.Version()) {
		return false
	}

	var bound *PluginRecord
	var ok bool
	switch q.kind {
	case RequestParent:
		bound, ok = q.requestor.bindParent(candidate)
	default:
		bound, ok = q.requestor.bindDependency(candidate, q.want.Range)
	}
	if !ok {
		return false
	}

	q.satisfier = bound
	bound.noteSatisfiedRequest(q)
	return true
}

// tryDesatisfy restores the pending state and undoes the binding. For a
// regular request the dependency-map entry is removed. For a parent
// request only the parent slot is cleared; the entry bindParent mirrored
// into the dependency map stays in place. It is only invoked by removal
// logic, which v1 does not expose.
func (q *DependencyRequest) tryDesatisfy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.satisfier == nil {
		return false
	}
	switch q.kind {
	case RequestParent:
		q.requestor.unbindParent()
	default:
		q.requestor.unbindDependency(q.want.ID)
	}
	q.satisfier = nil
	return true
}

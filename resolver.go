// resolver.go: request matching sweeps and the linkability fixed point
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

// Resolver matches pending dependency requests against the registry and
// computes per-record linkability.
//
// Resolution is monotonic: a satisfied request never becomes pending
// again (absent removal), and a linkable record never becomes
// unlinkable. Both sweeps are therefore idempotent and safe to run
// after every batch of inserts.
type Resolver struct {
	registry *Registry
	logger   Logger
	metrics  *ManagerMetrics
	events   *eventEmitter
}

// NewResolver creates a resolver over the given registry.
func NewResolver(registry *Registry, logger Logger, metrics *ManagerMetrics, events *eventEmitter) *Resolver {
	if logger == nil {
		logger = DefaultLogger()
	}
	if metrics == nil {
		metrics = &ManagerMetrics{}
	}
	if events == nil {
		events = newEventEmitter(logger)
	}
	return &Resolver{registry: registry, logger: logger, metrics: metrics, events: events}
}

// SatisfyPass runs one bulk resolution sweep.
//
// Every record, in insertion order, is offered to every pending
// request. Insertion order doubles as the tie-break: when several
// records could satisfy a request, the earliest-registered one wins.
// Satisfied requests leave the pending list. The return value reports
// whether the pending list ended up empty.
//
// Requests are independent of each other, so a single pass over all
// (record, request) pairs reaches the fixed point; nothing a satisfied
// request does can unblock another request.
func (rs *Resolver) SatisfyPass() bool {
	rs.registry.mu.RLock()
	defer rs.registry.mu.RUnlock()
	rs.registry.pendingMu.Lock()
	defer rs.registry.pendingMu.Unlock()

	for _, record := range rs.registry.records {
		remaining := rs.registry.pending[:0]
		for _, req := range rs.registry.pending {
			requestor := req.requestor
			wasResolved := requestor.IsResolved()
			if record.trySatisfyRequest(req) {
				rs.metrics.RequestsSatisfied.Add(1)
				rs.logger.Debug("Dependency request satisfied",
					"requestor", string(req.Requestor()),
					"dependency", string(req.Want().ID),
					"kind", req.Kind().String(),
					"satisfier_version", record.Version())
				if !wasResolved && requestor.IsResolved() {
					rs.events.emit(EventPluginResolved, requestor, nil)
				}
				continue
			}
			remaining = append(remaining, req)
		}
		rs.registry.pending = remaining
		if len(rs.registry.pending) == 0 {
			break
		}
	}

	return len(rs.registry.pending) == 0
}

// IsLinkable computes and, when possible, commits linkability for the
// record.
//
// The traversal is a DFS over resolved dependency bindings. A record
// that is already linkable terminates its branch; a record that is not
// resolved aborts the whole attempt; a back edge into the visited set
// closes a cycle and is skipped. When the DFS completes, the visited
// set is one resolvable component whose external edges all lead into
// already-linkable subgraphs, so every member is marked linkable
// together.
//
// Linkability is sticky: once committed it never reverts.
func (rs *Resolver) IsLinkable(r *PluginRecord) bool {
	if r.IsLinkable() {
		return true
	}

	visited := make(map[Identity]*PluginRecord)
	if !rs.linkableDFS(r, visited) {
		return false
	}

	for _, member := range visited {
		member.markLinkable()
		rs.metrics.RecordsLinkable.Add(1)
		rs.events.emit(EventPluginLinkable, member, nil)
	}
	return true
}

func (rs *Resolver) linkableDFS(r *PluginRecord, visited map[Identity]*PluginRecord) bool {
	if r.IsLinkable() {
		return true
	}
	if !r.IsResolved() {
		return false
	}
	if _, seen := visited[r.ID()]; seen {
		// Cycle edge; the member is already accounted for.
		return true
	}
	visited[r.ID()] = r

	if parent := r.ResolvedParent(); parent != nil {
		if !rs.linkableDFS(parent, visited) {
			return false
		}
	}
	for _, dep := range r.ResolvedDeps() {
		if !rs.linkableDFS(dep, visited) {
			return false
		}
	}
	return true
}

// LinkabilityPass attempts linkability for every record in insertion
// order and returns the records that are linkable afterwards.
func (rs *Resolver) LinkabilityPass() []*PluginRecord {
	records := rs.registry.Values()
	linkable := make([]*PluginRecord, 0, len(records))
	for _, r := range records {
		if rs.IsLinkable(r) {
			linkable = append(linkable, r)
		}
	}
	return linkable
}

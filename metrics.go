// metrics.go: operational counters for the plugin manager
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
)

// ManagerMetrics tracks operational counters across the manager. All
// fields are atomic; reads go through Snapshot.
type ManagerMetrics struct {
	RecordsInserted    atomic.Int64
	DuplicateInserts   atomic.Int64
	BlockedInserts     atomic.Int64
	RequestsEmitted    atomic.Int64
	RequestsSatisfied  atomic.Int64
	RecordsLinkable    atomic.Int64
	RecordsConstructed atomic.Int64
	RecordsActivated   atomic.Int64
	RecordsDeactivated atomic.Int64
	LifecycleFailures  atomic.Int64
	ManifestsParsed    atomic.Int64
	ManifestsRejected  atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the manager counters.
type MetricsSnapshot struct {
	RecordsInserted    int64     `json:"records_inserted"`
	DuplicateInserts   int64     `json:"duplicate_inserts"`
	BlockedInserts     int64     `json:"blocked_inserts"`
	RequestsEmitted    int64     `json:"requests_emitted"`
	RequestsSatisfied  int64     `json:"requests_satisfied"`
	RecordsLinkable    int64     `json:"records_linkable"`
	RecordsConstructed int64     `json:"records_constructed"`
	RecordsActivated   int64     `json:"records_activated"`
	RecordsDeactivated int64     `json:"records_deactivated"`
	LifecycleFailures  int64     `json:"lifecycle_failures"`
	ManifestsParsed    int64     `json:"manifests_parsed"`
	ManifestsRejected  int64     `json:"manifests_rejected"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// Snapshot copies the counters.
func (m *ManagerMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RecordsInserted:    m.RecordsInserted.Load(),
		DuplicateInserts:   m.DuplicateInserts.Load(),
		BlockedInserts:     m.BlockedInserts.Load(),
		RequestsEmitted:    m.RequestsEmitted.Load(),
		RequestsSatisfied:  m.RequestsSatisfied.Load(),
		RecordsLinkable:    m.RecordsLinkable.Load(),
		RecordsConstructed: m.RecordsConstructed.Load(),
		RecordsActivated:   m.RecordsActivated.Load(),
		RecordsDeactivated: m.RecordsDeactivated.Load(),
		LifecycleFailures:  m.LifecycleFailures.Load(),
		ManifestsParsed:    m.ManifestsParsed.Load(),
		ManifestsRejected:  m.ManifestsRejected.Load(),
		GeneratedAt:        timecache.CachedTime(),
	}
}

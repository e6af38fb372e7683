// events.go: lifecycle event emission
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// EventType identifies a lifecycle transition.
type EventType string

const (
	// EventPluginRegistered fires when a descriptor enters the registry.
	EventPluginRegistered EventType = "plugin_registered"
	// EventPluginResolved fires when a record's parent and required
	// dependencies are all bound.
	EventPluginResolved EventType = "plugin_resolved"
	// EventPluginLinkable fires when a record's linkable flag commits.
	EventPluginLinkable EventType = "plugin_linkable"
	// EventPluginConstructed fires when the construction slot fills.
	EventPluginConstructed EventType = "plugin_constructed"
	// EventPluginActivated fires when all activator hooks complete.
	EventPluginActivated EventType = "plugin_activated"
	// EventPluginDeactivated fires when deactivator hooks complete.
	EventPluginDeactivated EventType = "plugin_deactivated"
	// EventPluginFailed fires on construction or activation failure.
	EventPluginFailed EventType = "plugin_failed"
	// EventPluginDiscovered fires when a manifest parsed from a watched
	// root has been accepted into the registry, after its
	// EventPluginRegistered.
	EventPluginDiscovered EventType = "plugin_discovered"
)

// Event describes one lifecycle transition of one plugin.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Plugin    Identity  `json:"plugin"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     error     `json:"error,omitempty"`
}

// EventHandler receives lifecycle events. Handlers run on their own
// goroutine with panic recovery; a slow handler never blocks the
// lifecycle.
type EventHandler func(Event)

type eventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   Logger
}

func newEventEmitter(logger Logger) *eventEmitter {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &eventEmitter{logger: logger}
}

func (e *eventEmitter) addHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
}

func (e *eventEmitter) emit(eventType EventType, record *PluginRecord, err error) {
	e.mu.RLock()
	if len(e.handlers) == 0 {
		e.mu.RUnlock()
		return
	}
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Plugin:    record.ID(),
		Version:   record.Version(),
		Timestamp: timecache.CachedTime(),
		Error:     err,
	}

	for _, handler := range handlers {
		h := handler
		SafeGo(e.logger, func() {
			h(event)
		})
	}
}

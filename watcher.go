// watcher.go: directory watching for runtime plugin discovery
//
// The watcher combines fsnotify change events with a bounded poll
// fallback: events give low latency, the poll catches anything fsnotify
// misses (network filesystems, editors that replace files). A single
// shutdown channel stops the loop; there is no shared done flag to
// race on.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type directoryWatcher struct {
	root     string
	manager  *Manager
	interval time.Duration
	logger   Logger

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newDirectoryWatcher(root string, manager *Manager, interval time.Duration, logger Logger) (*directoryWatcher, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, NewWatcherError("failed to create filesystem watcher", err)
	}
	if err := fsw.Add(root); err != nil {
		closeErr := fsw.Close()
		_ = closeErr
		return nil, NewWatcherError("failed to watch root: "+root, err)
	}
	return &directoryWatcher{
		root:     root,
		manager:  manager,
		interval: interval,
		logger:   logger,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

func (w *directoryWatcher) start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer withStackRecover(w.logger)()
		w.run()
	}()
}

func (w *directoryWatcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Filesystem watcher error",
				"root", w.root,
				"error", err)

		case <-ticker.C:
			// Poll fallback; bounded so shutdown is observed promptly.
			w.manager.scanRoot(w.root)
		}
	}
}

func (w *directoryWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if w.manager.isManifestName(name) {
		w.manager.submitManifest(event.Name)
		return
	}
	// A new subdirectory may carry manifests of its own; fsnotify does
	// not recurse, so scan it and add it to the watch set.
	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() {
			return
		}
		if err := w.fsw.Add(event.Name); err != nil {
			w.logger.Warn("Failed to watch new subdirectory",
				"path", event.Name,
				"error", err)
		}
		w.manager.scanRoot(event.Name)
	}
}

func (w *directoryWatcher) stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("Filesystem watcher close failed",
				"root", w.root,
				"error", err)
		}
	})
	w.wg.Wait()
}

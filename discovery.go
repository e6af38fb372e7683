// discovery.go: manifest walking and parallel descriptor analysis
//
// Discovery scans watched roots for plugin manifest files, parses them
// into descriptors on the analysis pool, and hands them to the
// registry. Unreadable or invalid manifests are logged and skipped; a
// broken plugin never stops the walk.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ManifestDep is one dependency entry of a plugin manifest.
type ManifestDep struct {
	ID       string `yaml:"id" json:"id"`
	Version  string `yaml:"version" json:"version"`
	Required *bool  `yaml:"required" json:"required"`
}

// Manifest is the on-disk description of a plugin, typically a
// plugin.yaml next to the plugin's code or assets.
//
// The version field of a dependency accepts the sentinel "[any]" (or
// empty) for an unconstrained match and any other string for an exact
// match. The parent field accepts "[none]" or empty for no parent.
type Manifest struct {
	ID           string        `yaml:"id" json:"id"`
	Version      string        `yaml:"version" json:"version"`
	Description  string        `yaml:"description" json:"description"`
	Author       string        `yaml:"author" json:"author"`
	Parent       string        `yaml:"parent" json:"parent"`
	Type         string        `yaml:"type" json:"type"`
	Dependencies []ManifestDep `yaml:"dependencies" json:"dependencies"`
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Descriptor converts the manifest into a validated descriptor.
// Manifest-discovered plugins carry no constructor or hooks.
func (m *Manifest) Descriptor() (*Descriptor, error) {
	builder := NewDescriptor(Identity(m.ID), m.Version).
		WithParent(Identity(m.Parent)).
		WithDescription(m.Description).
		WithAuthor(m.Author)

	if m.Type != "" {
		builder.WithType(PluginType(m.Type))
	}
	for _, dep := range m.Dependencies {
		required := true
		if dep.Required != nil {
			required = *dep.Required
		}
		builder.WithDependency(Identity(dep.ID), ParseVersionRange(dep.Version), required)
	}
	return builder.Build()
}

// ManifestBinder is the signature of a function that attaches behavior
// (constructor, hooks) to a manifest's descriptor builder. The manager's
// discovery path does not call a binder: manifests found under watched
// roots are registered without constructor or hooks.
type ManifestBinder func(manifest *Manifest, builder *DescriptorBuilder) error

// manifestTracker deduplicates manifest paths across the initial scan
// and the watcher's poll fallback, so a manifest is analyzed once.
type manifestTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (t *manifestTracker) claim(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen == nil {
		t.seen = make(map[string]struct{})
	}
	if _, ok := t.seen[path]; ok {
		return false
	}
	t.seen[path] = struct{}{}
	return true
}

// isManifestName reports whether the base name is a recognized plugin
// manifest file name.
func (m *Manager) isManifestName(name string) bool {
	for _, candidate := range m.Config().ManifestNames {
		if name == candidate {
			return true
		}
	}
	return false
}

// scanRoot walks the directory tree under root and submits every
// unclaimed manifest to the analysis pool. Walk errors are logged and
// skipped.
func (m *Manager) scanRoot(root string) {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			m.logger.Warn("Discovery walk error, skipping entry",
				"path", path,
				"error", err)
			return nil
		}
		if entry.IsDir() || !m.isManifestName(entry.Name()) {
			return nil
		}
		m.submitManifest(path)
		return nil
	})
	if err != nil {
		m.logger.Warn("Discovery walk failed",
			"root", root,
			"error", err)
	}
}

// submitManifest schedules one manifest file for analysis, once per
// path for the lifetime of the manager.
func (m *Manager) submitManifest(path string) {
	if !m.manifestSeen.claim(path) {
		return
	}
	submitted := m.pool.Submit(func() {
		m.analyzeManifest(path)
	})
	if !submitted {
		m.logger.Warn("Analysis pool rejected manifest, pool is closed",
			"manifest_path", path)
	}
}

// analyzeManifest reads, parses, and registers one manifest. Every
// failure path logs and returns; discovery failures are never surfaced
// past the worker.
func (m *Manager) analyzeManifest(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		m.metrics.ManifestsRejected.Add(1)
		m.logger.Warn("Unreadable plugin manifest",
			"manifest_path", path,
			"error", err)
		return
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		m.metrics.ManifestsRejected.Add(1)
		m.logger.Warn("Unparsable plugin manifest",
			"manifest_path", path,
			"error", NewManifestParseError(path, err))
		return
	}

	desc, err := manifest.Descriptor()
	if err != nil {
		m.metrics.ManifestsRejected.Add(1)
		m.logger.Warn("Invalid plugin descriptor in manifest",
			"manifest_path", path,
			"error", err)
		return
	}

	m.metrics.ManifestsParsed.Add(1)
	record, outcome, err := m.Insert(desc)
	switch outcome {
	case InsertAccepted:
		m.events.emit(EventPluginDiscovered, record, nil)
		m.logger.Info("Plugin discovered",
			"plugin_id", string(desc.ID()),
			"version", desc.Version(),
			"manifest_path", path)
	case InsertDuplicate, InsertBlocked:
		// Already logged at the registry / predicate layer.
		_ = err
	}
}

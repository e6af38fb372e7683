// descriptor.go: immutable plugin metadata and the boundary builder
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"fmt"
)

// PluginType classifies how the lifecycle driver treats a plugin.
type PluginType string

const (
	// PluginTypeStandard plugins are constructed and activated during
	// initialization.
	PluginTypeStandard PluginType = "STANDARD"

	// PluginTypeLibrary plugins participate in dependency resolution but
	// are never constructed or activated themselves.
	PluginTypeLibrary PluginType = "LIBRARY"
)

// ConstructFunc produces the plugin instance. It is invoked under the
// record's construction lock, with the arguments passed to Initialize.
// Once it has returned an instance it is not invoked again for that
// plugin; after it returns an error, a later Initialize invokes it again.
type ConstructFunc func(ctx context.Context, args ...any) (any, error)

// HookFunc is an activator or deactivator hook. Hooks run on the
// Initialize/Shutdown caller's goroutine in priority order.
type HookFunc func(ctx context.Context, args ...any) error

// DeclaredDep is a single dependency declaration on a descriptor.
type DeclaredDep struct {
	ID       Identity
	Range    VersionRange
	Required bool
}

// HookEntry pairs a hook with its ordering key. Lower priority runs
// first; ties are broken by declaration position.
type HookEntry struct {
	Priority int
	Fn       HookFunc
}

// Descriptor is the immutable metadata describing a plugin.
//
// A descriptor is created once per plugin, either through the
// DescriptorBuilder or from a discovered manifest, and is never mutated
// afterwards. Its identity, version, and dependency sequence are frozen
// at creation.
type Descriptor struct {
	id           Identity
	version      string
	parentID     Identity
	hasParent    bool
	dependencies []DeclaredDep
	activators   []HookEntry
	deactivators []HookEntry
	pluginType   PluginType
	description  string
	author       string
	construct    ConstructFunc
}

// ID returns the plugin identity.
func (d *Descriptor) ID() Identity { return d.id }

// Version returns the plugin version string.
func (d *Descriptor) Version() string { return d.version }

// ParentID returns the declared parent identity and whether one exists.
func (d *Descriptor) ParentID() (Identity, bool) { return d.parentID, d.hasParent }

// Dependencies returns the declared dependencies in declaration order.
// The returned slice must not be modified.
func (d *Descriptor) Dependencies() []DeclaredDep { return d.dependencies }

// Type returns the plugin type.
func (d *Descriptor) Type() PluginType { return d.pluginType }

// Description returns the free-form description field.
func (d *Descriptor) Description() string { return d.description }

// Author returns the free-form author field.
func (d *Descriptor) Author() string { return d.author }

// ShouldInitialize reports whether the lifecycle driver constructs and
// activates this plugin. Library plugins are resolved and linked but
// never initialized.
func (d *Descriptor) ShouldInitialize() bool {
	return d.pluginType != PluginTypeLibrary
}

// Key returns a stable hash key for the descriptor. Only the frozen
// fields participate: identity, version, and the dependency sequence.
func (d *Descriptor) Key() string {
	key := string(d.id) + "@" + d.version
	for _, dep := range d.dependencies {
		key += "|" + string(dep.ID) + "@" + dep.Range.String()
		if !dep.Required {
			key += "?"
		}
	}
	return key
}

// DescriptorBuilder assembles a Descriptor at the boundary.
//
// The builder is the only way user code creates descriptors; Build
// validates the accumulated state and returns an immutable Descriptor.
//
// Example usage:
//
//	desc, err := NewDescriptor("cache", "1.2.0").
//	    WithDependency("store", ExactVersion("2.0"), true).
//	    WithConstructor(newCache).
//	    WithActivator(0, startCache).
//	    WithDeactivator(0, stopCache).
//	    Build()
type DescriptorBuilder struct {
	desc Descriptor
}

// NewDescriptor starts a builder for a plugin with the given identity
// and version.
func NewDescriptor(id Identity, version string) *DescriptorBuilder {
	return &DescriptorBuilder{desc: Descriptor{
		id:         id,
		version:    version,
		pluginType: PluginTypeStandard,
	}}
}

// WithParent declares the parent plugin. The sentinel "[none]" and the
// empty string are treated as no parent.
func (b *DescriptorBuilder) WithParent(parent Identity) *DescriptorBuilder {
	if parent == "" || string(parent) == ParentNoneSentinel {
		b.desc.parentID = ""
		b.desc.hasParent = false
		return b
	}
	b.desc.parentID = parent
	b.desc.hasParent = true
	return b
}

// WithDependency appends a dependency declaration.
func (b *DescriptorBuilder) WithDependency(id Identity, r VersionRange, required bool) *DescriptorBuilder {
	b.desc.dependencies = append(b.desc.dependencies, DeclaredDep{ID: id, Range: r, Required: required})
	return b
}

// WithType sets the plugin type.
func (b *DescriptorBuilder) WithType(t PluginType) *DescriptorBuilder {
	b.desc.pluginType = t
	return b
}

// WithDescription sets the free-form description field.
func (b *DescriptorBuilder) WithDescription(s string) *DescriptorBuilder {
	b.desc.description = s
	return b
}

// WithAuthor sets the free-form author field.
func (b *DescriptorBuilder) WithAuthor(s string) *DescriptorBuilder {
	b.desc.author = s
	return b
}

// WithConstructor sets the construction callback.
func (b *DescriptorBuilder) WithConstructor(fn ConstructFunc) *DescriptorBuilder {
	b.desc.construct = fn
	return b
}

// WithActivator appends an activator hook with the given priority.
func (b *DescriptorBuilder) WithActivator(priority int, fn HookFunc) *DescriptorBuilder {
	b.desc.activators = append(b.desc.activators, HookEntry{Priority: priority, Fn: fn})
	return b
}

// WithDeactivator appends a deactivator hook with the given priority.
func (b *DescriptorBuilder) WithDeactivator(priority int, fn HookFunc) *DescriptorBuilder {
	b.desc.deactivators = append(b.desc.deactivators, HookEntry{Priority: priority, Fn: fn})
	return b
}

// Build validates the accumulated state and returns the descriptor.
//
// Validation rules: the identity and version are non-empty; every
// declared dependency has a non-empty identity; the plugin type is one
// of the known values.
func (b *DescriptorBuilder) Build() (*Descriptor, error) {
	d := b.desc
	if d.id == "" {
		return nil, NewInvalidDescriptorError("plugin identity is empty")
	}
	if d.version == "" {
		return nil, NewInvalidDescriptorError("plugin version is empty")
	}
	if d.pluginType != PluginTypeStandard && d.pluginType != PluginTypeLibrary {
		return nil, NewInvalidDescriptorError(fmt.Sprintf("unknown plugin type %q", d.pluginType))
	}
	for i, dep := range d.dependencies {
		if dep.ID == "" {
			return nil, NewInvalidDescriptorError(fmt.Sprintf("dependency %d has an empty identity", i))
		}
	}

	// Freeze the slices: the builder may be reused, the descriptor may not
	// observe later mutation.
	out := d
	out.dependencies = append([]DeclaredDep(nil), d.dependencies...)
	out.activators = append([]HookEntry(nil), d.activators...)
	out.deactivators = append([]HookEntry(nil), d.deactivators...)
	return &out, nil
}

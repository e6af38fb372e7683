// doc.go: package documentation for go-pluginhost
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package pluginhost is a runtime plugin manager built around a
// concurrent dependency resolver and lifecycle state machine.
//
// Plugins declare an identity, a version, an optional parent, a set of
// required and optional dependencies with version constraints, and
// ordered activator and deactivator hooks. The manager registers their
// descriptors, matches outstanding dependency requests against the
// registry, computes linkability through a fixed-point traversal that
// handles dependency cycles, and drives each plugin through its
// lifecycle: Registered, Resolved, Linkable, Constructed, Active, and
// Inactive.
//
// Descriptors arrive either programmatically through the
// DescriptorBuilder or from plugin manifest files discovered under
// watched directory roots. Discovery runs on a bounded analysis pool
// sized by the PLUGIN_MANAGER_MAX_THREADS environment variable;
// directory watching combines fsnotify events with a bounded poll
// fallback so shutdown is always observed promptly.
//
// Basic usage:
//
//	manager, err := pluginhost.New(pluginhost.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.Shutdown(context.Background())
//
//	desc, _ := pluginhost.NewDescriptor("cache", "1.0").
//	    WithDependency("store", pluginhost.ExactVersion("2.0"), true).
//	    WithConstructor(newCache).
//	    WithActivator(0, startCache).
//	    Build()
//
//	manager.Insert(desc)
//	failures, err := manager.Initialize(context.Background())
//
// The registry's insertion order is the canonical determinism source:
// resolution sweeps, linkability passes, and the topological
// initialization order all iterate it, so concurrent discovery still
// yields reproducible initialization.
package pluginhost

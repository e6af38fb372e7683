// descriptor_test.go: tests for descriptor construction and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"testing"

	goerrors "github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorBuilderBasic(t *testing.T) {
	desc, err := NewDescriptor("cache", "1.2.0").
		WithDescription("in-memory cache").
		WithAuthor("team").
		WithDependency("store", ExactVersion("2.0"), true).
		WithDependency("stats", AnyVersion(), false).
		Build()
	require.NoError(t, err)

	assert.Equal(t, Identity("cache"), desc.ID())
	assert.Equal(t, "1.2.0", desc.Version())
	assert.Equal(t, "in-memory cache", desc.Description())
	assert.Equal(t, "team", desc.Author())
	assert.Equal(t, PluginTypeStandard, desc.Type())
	assert.True(t, desc.ShouldInitialize())

	deps := desc.Dependencies()
	require.Len(t, deps, 2)
	assert.Equal(t, Identity("store"), deps[0].ID)
	assert.True(t, deps[0].Required)
	assert.Equal(t, Identity("stats"), deps[1].ID)
	assert.False(t, deps[1].Required)

	_, hasParent := desc.ParentID()
	assert.False(t, hasParent)
}

func TestDescriptorBuilderValidation(t *testing.T) {
	tests := []struct {
		name    string
		builder *DescriptorBuilder
	}{
		{"empty identity", NewDescriptor("", "1.0")},
		{"empty version", NewDescriptor("cache", "")},
		{"empty dependency identity", NewDescriptor("cache", "1.0").
			WithDependency("", AnyVersion(), true)},
		{"unknown plugin type", NewDescriptor("cache", "1.0").
			WithType(PluginType("WEIRD"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			require.Error(t, err)
			var structured *goerrors.Error
			require.ErrorAs(t, err, &structured)
			assert.Equal(t, goerrors.ErrorCode(ErrCodeInvalidDescriptor), structured.ErrorCode())
		})
	}
}

func TestDescriptorParentSentinels(t *testing.T) {
	tests := []struct {
		name      string
		parent    string
		hasParent bool
	}{
		{"real parent", "core", true},
		{"none sentinel", "[none]", false},
		{"empty parent", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := NewDescriptor("child", "1.0").
				WithParent(Identity(tt.parent)).
				Build()
			require.NoError(t, err)
			parentID, ok := desc.ParentID()
			assert.Equal(t, tt.hasParent, ok)
			if tt.hasParent {
				assert.Equal(t, Identity(tt.parent), parentID)
			}
		})
	}
}

func TestDescriptorLibraryType(t *testing.T) {
	desc, err := NewDescriptor("toolkit", "1.0").
		WithType(PluginTypeLibrary).
		Build()
	require.NoError(t, err)
	assert.False(t, desc.ShouldInitialize())
}

func TestDescriptorBuilderFreezesState(t *testing.T) {
	builder := NewDescriptor("cache", "1.0").
		WithDependency("store", AnyVersion(), true)
	first, err := builder.Build()
	require.NoError(t, err)

	// Reusing the builder must not mutate the already-built descriptor.
	builder.WithDependency("extra", AnyVersion(), true)
	second, err := builder.Build()
	require.NoError(t, err)

	assert.Len(t, first.Dependencies(), 1)
	assert.Len(t, second.Dependencies(), 2)
}

func TestDescriptorKeyUsesFrozenFieldsOnly(t *testing.T) {
	withHooks, err := NewDescriptor("cache", "1.0").
		WithDependency("store", ExactVersion("2.0"), true).
		WithActivator(0, func(ctx context.Context, args ...any) error { return nil }).
		Build()
	require.NoError(t, err)

	withoutHooks, err := NewDescriptor("cache", "1.0").
		WithDependency("store", ExactVersion("2.0"), true).
		Build()
	require.NoError(t, err)

	assert.Equal(t, withoutHooks.Key(), withHooks.Key())

	otherDeps, err := NewDescriptor("cache", "1.0").
		WithDependency("store", ExactVersion("3.0"), true).
		Build()
	require.NoError(t, err)
	assert.NotEqual(t, withHooks.Key(), otherDeps.Key())
}

// identity_test.go: tests for identities and version ranges
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersionRange(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		version string
		matches bool
	}{
		{"any sentinel matches anything", "[any]", "1.0", true},
		{"any sentinel matches empty", "[any]", "", true},
		{"empty expression means any", "", "weird-version", true},
		{"exact match", "1.0", "1.0", true},
		{"exact mismatch", "1.0", "1.0.0", false},
		{"exact is byte equality", "1.0 ", "1.0", false},
		{"exact against empty version", "2.0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseVersionRange(tt.expr)
			assert.Equal(t, tt.matches, r.Matches(tt.version))
		})
	}
}

func TestVersionRangeConstructors(t *testing.T) {
	assert.True(t, AnyVersion().IsAny())
	assert.True(t, AnyVersion().Matches("anything"))

	exact := ExactVersion("3.1")
	assert.False(t, exact.IsAny())
	assert.True(t, exact.Matches("3.1"))
	assert.False(t, exact.Matches("3.2"))
}

func TestVersionRangeString(t *testing.T) {
	assert.Equal(t, "[any]", AnyVersion().String())
	assert.Equal(t, "2.0", ExactVersion("2.0").String())
}

func TestVersionRangeZeroValueIsAny(t *testing.T) {
	var r VersionRange
	assert.True(t, r.Matches("1.0"))
	assert.True(t, r.IsAny())
}

func TestIdentityByteEquality(t *testing.T) {
	assert.Equal(t, Identity("cache"), Identity("cache"))
	assert.NotEqual(t, Identity("cache"), Identity("Cache"))
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeIdentifier(t *testing.T) {
	tests := []struct {
		value int
		want  string
	}{
		{0, "a"},
		{1, "b"},
		{25, "z"},
		{26, "aa"},
		{27, "ab"},
		{51, "az"},
		{52, "ba"},
		{701, "zz"},
		{702, "aaa"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, encodeIdentifier(tt.value), "value %d", tt.value)
	}
}

func TestNameGenerator_SkipsCollisions(t *testing.T) {
	gen := newNameGenerator(map[string]bool{"a": true, "c": true})
	assert.Equal(t, "b", gen.next("first"))
	assert.Equal(t, "d", gen.next("second"))
	assert.Equal(t, "e", gen.next("third"))
}

func TestNameGenerator_IdentityAllowedThroughAvoid(t *testing.T) {
	// A binding already named "a" may keep its name even though "a"
	// occurs in the function; the planner drops the identity entry.
	gen := newNameGenerator(map[string]bool{"a": true})
	assert.Equal(t, "a", gen.next("a"))
	assert.Equal(t, "b", gen.next("other"))
}

func TestNameGenerator_SkipsReservedSingles(t *testing.T) {
	// No single letter is a keyword or builtin, but the avoid set can
	// exhaust the alphabet; the generator rolls into two letters.
	avoid := make(map[string]bool)
	for c := byte('a'); c <= 'z'; c++ {
		avoid[string(c)] = true
	}
	gen := newNameGenerator(avoid)
	assert.Equal(t, "aa", gen.next("first"))
	assert.Equal(t, "ab", gen.next("second"))
}

func TestNameGenerator_NeverIssuesUnderscore(t *testing.T) {
	gen := newNameGenerator(nil)
	for i := 0; i < 100; i++ {
		name := gen.next("original")
		assert.NotEqual(t, "_", name)
		assert.False(t, keywordSet[name], "issued keyword %q", name)
		assert.False(t, builtinSet[name], "issued builtin %q", name)
	}
}

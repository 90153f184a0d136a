// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package diffview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnified_EqualInputs(t *testing.T) {
	assert.Empty(t, Unified("f.py", "a\nb\n", "a\nb\n", 3))
}

func TestUnified_SimpleChange(t *testing.T) {
	before := "def f(value):\n    return value\n"
	after := "def f(a):\n    return a\n"
	out := Unified("f.py", before, after, 3)

	assert.True(t, strings.HasPrefix(out, "--- f.py\n+++ f.py\n"), out)
	assert.Contains(t, out, "-def f(value):")
	assert.Contains(t, out, "+def f(a):")
	assert.Contains(t, out, "@@")
}

func TestUnified_ContextLimitsHunk(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("line\n")
	}
	before := b.String() + "old\n" + b.String()
	after := b.String() + "new\n" + b.String()

	out := Unified("f.py", before, after, 1)
	// One context line on each side of the single change.
	assert.Equal(t, 2, strings.Count(out, " line\n"), out)
	assert.Contains(t, out, "-old")
	assert.Contains(t, out, "+new")
}

func TestUnified_ZeroContext(t *testing.T) {
	out := Unified("f.py", "keep\nold\nkeep\n", "keep\nnew\nkeep\n", 0)
	assert.NotContains(t, out, " keep")
	assert.Contains(t, out, "-old")
	assert.Contains(t, out, "+new")
}

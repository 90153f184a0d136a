// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package imports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, source string) []string {
	t.Helper()
	set, err := CollectTopLevel(context.Background(), []byte(source))
	require.NoError(t, err)
	return set.Names()
}

func TestCollectTopLevel_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{name: "plain", source: "import os\n", want: []string{"os"}},
		{name: "aliased", source: "import numpy as np\n", want: []string{"numpy"}},
		{name: "dotted", source: "import os.path\n", want: []string{"os"}},
		{name: "dotted aliased", source: "import xml.etree.ElementTree as ET\n", want: []string{"xml"}},
		{name: "from import", source: "from collections import defaultdict\n", want: []string{"collections"}},
		{name: "from dotted", source: "from os.path import join\n", want: []string{"os"}},
		{name: "from import aliased", source: "from json import dumps as d\n", want: []string{"json"}},
		{name: "multi import one line", source: "import os, sys, json\n", want: []string{"os", "sys", "json"}},
		{
			name:   "parenthesized multiline",
			source: "from pkg import (\n    alpha,\n    beta,\n)\n",
			want:   []string{"pkg"},
		},
		{
			name:   "backslash continued",
			source: "from pkg import alpha, \\\n    beta\n",
			want:   []string{"pkg"},
		},
		{name: "wildcard", source: "from tools import *\n", want: []string{"tools"}},
		{name: "relative bare", source: "from . import sibling\n", want: []string{"."}},
		{name: "relative package", source: "from .pkg import thing\n", want: []string{"."}},
		{name: "relative parent", source: "from ..common import thing\n", want: []string{"."}},
		{
			name:   "inside function",
			source: "def f():\n    import functools\n    return functools\n",
			want:   []string{"functools"},
		},
		{
			name:   "inside class",
			source: "class C:\n    import enum\n",
			want:   []string{"enum"},
		},
		{
			name:   "inside try",
			source: "try:\n    import ujson\nexcept ImportError:\n    import json\n",
			want:   []string{"ujson", "json"},
		},
		{
			name:   "inside if",
			source: "if True:\n    import platform\n",
			want:   []string{"platform"},
		},
		{
			name:   "inside with",
			source: "with ctx():\n    import tempfile\n",
			want:   []string{"tempfile"},
		},
		{
			name:   "type checking guard still emitted",
			source: "from typing import TYPE_CHECKING\nif TYPE_CHECKING:\n    import heavy\n",
			want:   []string{"typing", "heavy"},
		},
		{name: "future import", source: "from __future__ import annotations\n", want: []string{"__future__"}},
		{
			name:   "duplicates folded",
			source: "import os\nimport os.path\nfrom os import sep\n",
			want:   []string{"os"},
		},
		{
			name:   "dynamic import not tracked",
			source: "__import__(\"used_pkg\")\nimport mod\n",
			want:   []string{"mod"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(t, tt.source))
		})
	}
}

func TestCollectTopLevel_InsertionOrderStable(t *testing.T) {
	source := "import zlib\nimport abc\nimport zlib\n"
	first := collect(t, source)
	second := collect(t, source)
	assert.Equal(t, []string{"zlib", "abc"}, first)
	assert.Equal(t, first, second)
}

func TestSet_MergeAndSlimInput(t *testing.T) {
	a := NewSet()
	a.Add("os")
	a.Add(RelativeSentinel)

	b := NewSet()
	b.Add("json")
	b.Add("os")

	a.Merge(b)
	assert.Equal(t, []string{"os", RelativeSentinel, "json"}, a.Names())
	assert.Equal(t, []string{"os", "json"}, a.SlimInput())
}

func TestCollectTopLevel_ParseError(t *testing.T) {
	_, err := CollectTopLevel(context.Background(), []byte("import (\n"))
	require.Error(t, err)
}

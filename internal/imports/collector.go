// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package imports extracts the set of top-level modules a Python file
// references through static import statements.
// Implements: prd002-python-frontend R3 (import collection).
package imports

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/petar-djukic/pytrim/internal/pysrc"
)

// RelativeSentinel stands in for any relative import (leading dot).
// It is excluded from slim inputs.
const RelativeSentinel = "."

// Set is an insertion-ordered collection of unique top-level module
// names. Ordering keeps outputs deterministic; consumers compare
// set-wise.
type Set struct {
	names []string
	seen  map[string]bool
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{seen: make(map[string]bool)}
}

// Add inserts a name unless already present.
func (s *Set) Add(name string) {
	if name == "" || s.seen[name] {
		return
	}
	s.seen[name] = true
	s.names = append(s.names, name)
}

// Contains reports membership.
func (s *Set) Contains(name string) bool {
	return s.seen[name]
}

// Names returns the insertion-ordered contents.
func (s *Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Merge folds other into s, preserving s's first-seen order.
func (s *Set) Merge(other *Set) {
	for _, name := range other.names {
		s.Add(name)
	}
}

// SlimInput returns the names relevant to venv slimming: everything
// except the relative-import sentinel.
func (s *Set) SlimInput() []string {
	out := make([]string, 0, len(s.names))
	for _, name := range s.names {
		if name != RelativeSentinel {
			out = append(out, name)
		}
	}
	return out
}

// CollectTopLevel parses source and returns its top-level import set.
// Imports are collected at any nesting depth: inside functions,
// classes, try, if, and with bodies all count, including
// TYPE_CHECKING-guarded blocks (the collector is purely syntactic).
func CollectTopLevel(ctx context.Context, source []byte) (*Set, error) {
	tree, err := pysrc.Parse(ctx, source)
	if err != nil {
		return nil, err
	}
	set := NewSet()
	CollectFromTree(tree, set)
	return set, nil
}

// CollectFromTree walks an already-parsed module into set.
func CollectFromTree(tree *pysrc.Tree, set *Set) {
	pysrc.Walk(tree.Root, func(n *sitter.Node) bool {
		switch n.Type() {
		case pysrc.KindImport, pysrc.KindFutureImport:
			collectPlainImport(tree, n, set)
			return false
		case pysrc.KindImportFrom:
			collectFromImport(tree, n, set)
			return false
		}
		return true
	})
}

// collectPlainImport handles `import a`, `import a.b.c`, and
// `import a as x`, possibly comma-separated.
func collectPlainImport(tree *pysrc.Tree, n *sitter.Node, set *Set) {
	if n.Type() == pysrc.KindFutureImport {
		set.Add("__future__")
		return
	}
	pysrc.EachNamedChild(n, func(child *sitter.Node) {
		target := child
		if child.Type() == pysrc.KindAliasedImport {
			target = child.ChildByFieldName("name")
		}
		if target != nil && target.Type() == pysrc.KindDottedName {
			set.Add(topSegment(tree.Text(target)))
		}
	})
}

// collectFromImport handles `from a.b import x`, wildcard forms, and
// relative imports (recorded as the sentinel).
func collectFromImport(tree *pysrc.Tree, n *sitter.Node, set *Set) {
	module := n.ChildByFieldName("module_name")
	if module == nil {
		return
	}
	if module.Type() == pysrc.KindRelativeImport {
		set.Add(RelativeSentinel)
		return
	}
	set.Add(topSegment(tree.Text(module)))
}

func topSegment(dotted string) string {
	if idx := strings.IndexByte(dotted, '.'); idx >= 0 {
		return dotted[:idx]
	}
	return dotted
}

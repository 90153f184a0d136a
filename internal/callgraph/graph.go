// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package callgraph builds an advisory per-package function graph:
// entry-point detection, identifier call edges, and reachability. Its
// report never drives source removal.
// Implements: prd008-callgraph R1 (registry), R2 (edges),
//
//	R3 (reachability).
package callgraph

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/petar-djukic/pytrim/internal/pysrc"
)

// EntryKind classifies why a function counts as externally reachable.
type EntryKind int

const (
	EntryRegular    EntryKind = iota // Reachable only through calls
	EntryModuleInit                  // Called from module-level code
	EntryScriptMain                  // Called under if __name__ == "__main__"
	EntryTest                        // test_ prefix; a policy, not an invariant
	EntryDunder                      // __dunder__ name
	EntryExport                      // Listed in __all__
)

func (k EntryKind) String() string {
	switch k {
	case EntryModuleInit:
		return "module-init"
	case EntryScriptMain:
		return "script-main"
	case EntryTest:
		return "test-function"
	case EntryDunder:
		return "dunder"
	case EntryExport:
		return "public-export"
	default:
		return "regular"
	}
}

// Function is one registered definition. Nodes are keyed by opaque
// integer ids with side tables for name and entry kind.
type Function struct {
	ID            int       `json:"id"`
	QualifiedName string    `json:"qualified_name"`
	File          string    `json:"file"`
	Entry         EntryKind `json:"-"`
	EntryName     string    `json:"entry_kind"`
}

// Graph accumulates definitions and call edges for one package.
type Graph struct {
	funcs  []Function
	byName map[string][]int // last qualified-name segment -> ids
	edges  [][2]int
	// pending holds callee names seen before their definitions.
	pending []pendingCall
	exports map[string]bool
}

type pendingCall struct {
	from   int // -1 for an entry-level call site
	callee string
	main   bool // under a script-main guard
}

// New creates an empty package graph.
func New() *Graph {
	return &Graph{byName: make(map[string][]int), exports: make(map[string]bool)}
}

// AddFile registers a parsed file's definitions and call sites.
func (g *Graph) AddFile(ctx context.Context, rel string, source []byte) error {
	tree, err := pysrc.Parse(ctx, source)
	if err != nil {
		return err
	}
	g.collectExports(tree)
	g.collectDefs(tree, tree.Root, rel, nil)
	g.collectCalls(tree, tree.Root, -1, false)
	return nil
}

func (g *Graph) collectExports(tree *pysrc.Tree) {
	pysrc.EachNamedChild(tree.Root, func(stmt *sitter.Node) {
		if stmt.Type() != pysrc.KindExpressionStmt || stmt.NamedChildCount() == 0 {
			return
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != pysrc.KindAssignment {
			return
		}
		left := assign.ChildByFieldName("left")
		right := assign.ChildByFieldName("right")
		if left == nil || right == nil || tree.Text(left) != "__all__" {
			return
		}
		pysrc.Walk(right, func(n *sitter.Node) bool {
			if n.Type() == pysrc.KindString {
				g.exports[strings.Trim(tree.Text(n), `"'`)] = true
			}
			return true
		})
	})
}

func (g *Graph) collectDefs(tree *pysrc.Tree, scope *sitter.Node, rel string, path []string) {
	pysrc.Walk(scope, func(n *sitter.Node) bool {
		if n == scope {
			return true
		}
		switch n.Type() {
		case pysrc.KindFunctionDef:
			name := pysrc.DefName(tree, n)
			qualified := name
			if len(path) > 0 {
				qualified = strings.Join(path, ".") + "." + name
			}
			id := len(g.funcs)
			g.funcs = append(g.funcs, Function{
				ID:            id,
				QualifiedName: qualified,
				File:          rel,
				Entry:         g.classify(name),
			})
			g.byName[name] = append(g.byName[name], id)
			g.collectDefs(tree, n.ChildByFieldName("body"), rel, append(append([]string{}, path...), name))
			return false
		case pysrc.KindClassDef:
			g.collectDefs(tree, n.ChildByFieldName("body"), rel,
				append(append([]string{}, path...), pysrc.DefName(tree, n)))
			return false
		}
		return true
	})
}

func (g *Graph) classify(name string) EntryKind {
	switch {
	case strings.HasPrefix(name, "test_"):
		return EntryTest
	case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"):
		return EntryDunder
	case g.exports[name]:
		return EntryExport
	}
	return EntryRegular
}

// collectCalls records identifier and attribute callees. Attribute
// callees are matched only against this package's name table.
func (g *Graph) collectCalls(tree *pysrc.Tree, scope *sitter.Node, from int, underMain bool) {
	pysrc.Walk(scope, func(n *sitter.Node) bool {
		if n == scope {
			return true
		}
		switch n.Type() {
		case pysrc.KindFunctionDef:
			name := pysrc.DefName(tree, n)
			// Body calls belong to the innermost matching definition.
			ids := g.byName[name]
			inner := -1
			if len(ids) > 0 {
				inner = ids[len(ids)-1]
			}
			g.collectCalls(tree, n.ChildByFieldName("body"), inner, false)
			return false
		case "if_statement":
			if from == -1 && isMainGuard(tree, n) {
				g.collectCalls(tree, n, from, true)
				return false
			}
			return true
		case pysrc.KindCall:
			fn := n.ChildByFieldName("function")
			if fn == nil {
				return true
			}
			var callee string
			switch fn.Type() {
			case pysrc.KindIdentifier:
				callee = tree.Text(fn)
			case pysrc.KindAttribute:
				if attr := fn.ChildByFieldName("attribute"); attr != nil {
					callee = tree.Text(attr)
				}
			}
			if callee != "" {
				g.pending = append(g.pending, pendingCall{from: from, callee: callee, main: underMain})
			}
			return true
		}
		return true
	})
}

func isMainGuard(tree *pysrc.Tree, ifStmt *sitter.Node) bool {
	cond := ifStmt.ChildByFieldName("condition")
	if cond == nil {
		return false
	}
	text := tree.Text(cond)
	return strings.Contains(text, "__name__") && strings.Contains(text, "__main__")
}

// Report lists functions unreachable from the entry-point set. It is
// advisory: dynamic dispatch, decorators, and re-exports all evade
// static matching.
type Report struct {
	Entries         []Function `json:"entries"`
	PotentiallyDead []Function `json:"potentially_dead"`
}

// Resolve finishes edge matching and computes reachability by
// breadth-first traversal from the entry-point set.
func (g *Graph) Resolve() *Report {
	entrySeeds := []int{}
	for _, fn := range g.funcs {
		if fn.Entry != EntryRegular {
			entrySeeds = append(entrySeeds, fn.ID)
		}
	}
	for _, call := range g.pending {
		targets := g.byName[call.callee]
		for _, target := range targets {
			if call.from == -1 {
				// Module-level or script-main call: the target is an
				// entry point itself.
				kind := EntryModuleInit
				if call.main {
					kind = EntryScriptMain
				}
				if g.funcs[target].Entry == EntryRegular {
					g.funcs[target].Entry = kind
				}
				entrySeeds = append(entrySeeds, target)
				continue
			}
			g.edges = append(g.edges, [2]int{call.from, target})
		}
	}

	adjacency := make(map[int][]int)
	for _, e := range g.edges {
		adjacency[e[0]] = append(adjacency[e[0]], e[1])
	}

	reached := make(map[int]bool)
	queue := append([]int{}, entrySeeds...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reached[id] {
			continue
		}
		reached[id] = true
		queue = append(queue, adjacency[id]...)
	}

	report := &Report{Entries: []Function{}, PotentiallyDead: []Function{}}
	for _, fn := range g.funcs {
		fn.EntryName = fn.Entry.String()
		if fn.Entry != EntryRegular {
			report.Entries = append(report.Entries, fn)
		}
		if !reached[fn.ID] {
			report.PotentiallyDead = append(report.PotentiallyDead, fn)
		}
	}
	sort.Slice(report.PotentiallyDead, func(i, j int) bool {
		a, b := report.PotentiallyDead[i], report.PotentiallyDead[j]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.QualifiedName < b.QualifiedName
	})
	return report
}

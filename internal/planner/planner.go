// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package planner performs per-function scope analysis over Python
// source and produces rename plans with bailout flags.
// Implements: prd003-scope-planner R1 (binding collection),
//
//	R2 (exclusions), R3 (bailouts), R4 (name assignment),
//	R5 (docstring discovery).
package planner

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/petar-djukic/pytrim/internal/pysrc"
	"github.com/petar-djukic/pytrim/pkg/types"
)

// PlanModule analyzes a decoded source buffer and returns a
// deterministic module plan. Planning the same bytes twice yields
// byte-identical JSON. All plan ranges are expressed in the original
// buffer's encoded bytes (BOM included), so persisted plans address
// the on-disk file.
func PlanModule(ctx context.Context, buf *pysrc.Buffer, moduleName string) (*types.ModulePlan, error) {
	tree, err := pysrc.Parse(ctx, buf.Text)
	if err != nil {
		return nil, err
	}

	plan := &types.ModulePlan{
		FormatVersion:      types.PlanFormatVersion,
		PythonSyntaxTarget: types.PythonSyntaxTarget,
		Module:             moduleName,
		Keywords:           sortedCopy(pythonKeywords),
		Builtins:           sortedCopy(pythonBuiltins),
		Docstrings:         collectDocstrings(tree, buf),
		Functions:          []types.FunctionPlan{},
	}

	v := &moduleVisitor{tree: tree, buf: buf}
	v.discover(tree.Root, nil)
	plan.Functions = v.plans
	return plan, nil
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

// collectDocstrings records module, class, and function docstring
// statement ranges in source order, converted to encoded-byte offsets.
func collectDocstrings(tree *pysrc.Tree, buf *pysrc.Buffer) []types.DocstringRef {
	refs := []types.DocstringRef{}
	record := func(body *sitter.Node) {
		if doc := pysrc.Docstring(body); doc != nil {
			refs = append(refs, types.DocstringRef{Range: buf.EncodedRange(pysrc.NodeRange(doc))})
		}
	}
	record(tree.Root)
	pysrc.Walk(tree.Root, func(n *sitter.Node) bool {
		switch n.Type() {
		case pysrc.KindFunctionDef, pysrc.KindClassDef:
			record(n.ChildByFieldName("body"))
		}
		return true
	})
	return refs
}

// moduleVisitor walks definition structure, planning each function in
// depth-first source order. Class bodies are entered only to locate
// nested definitions.
type moduleVisitor struct {
	tree  *pysrc.Tree
	buf   *pysrc.Buffer
	plans []types.FunctionPlan
}

func (v *moduleVisitor) discover(scope *sitter.Node, path []string) {
	pysrc.Walk(scope, func(n *sitter.Node) bool {
		if n == scope {
			return true
		}
		switch n.Type() {
		case pysrc.KindFunctionDef:
			name := pysrc.DefName(v.tree, n)
			v.plans = append(v.plans, v.planFunction(n, qualify(path, name)))
			v.discover(n.ChildByFieldName("body"), extend(path, name))
			return false
		case pysrc.KindClassDef:
			v.discover(n.ChildByFieldName("body"), extend(path, pysrc.DefName(v.tree, n)))
			return false
		case pysrc.KindLambda:
			return false
		}
		return true
	})
}

func qualify(path []string, name string) string {
	if len(path) == 0 {
		return name
	}
	return strings.Join(path, ".") + "." + name
}

func extend(path []string, name string) []string {
	child := make([]string, 0, len(path)+1)
	child = append(child, path...)
	return append(child, name)
}

// planFunction analyzes one function's own scope.
func (v *moduleVisitor) planFunction(def *sitter.Node, qualifiedName string) types.FunctionPlan {
	body := def.ChildByFieldName("body")
	params := def.ChildByFieldName("parameters")

	c := newScopeCollector(v.tree)
	c.declareScope(body)
	c.collectParameters(params)
	if body != nil {
		c.walkScope(body)
	}

	localSet := make(map[string]bool, len(c.order))
	for _, name := range c.order {
		localSet[name] = true
	}

	attrSync := false
	for _, attr := range c.attrWrites {
		if localSet[attr] {
			attrSync = true
			break
		}
	}
	fstringHit := false
	for _, name := range c.order {
		if c.fstringIdents[name] {
			fstringHit = true
			break
		}
	}

	bailout := c.hasNested || c.hasDeclaration || c.hasComprehension ||
		c.hasMatch || c.hasReflection || attrSync || fstringHit

	renames := []types.RenameEntry{}
	if !bailout {
		avoid := pysrc.IdentifiersIn(v.tree, def)
		for name := range c.excluded {
			avoid[name] = true
		}
		gen := newNameGenerator(avoid)
		for _, name := range c.order {
			renamed := gen.next(name)
			if renamed == name {
				continue // already minimal; an identity rename is noise
			}
			renames = append(renames, types.RenameEntry{Original: name, Renamed: renamed})
		}
	}

	excluded := make([]types.ExcludedName, 0, len(c.excluded))
	for name, reason := range c.excluded {
		excluded = append(excluded, types.ExcludedName{Name: name, Reason: reason})
	}
	sort.Slice(excluded, func(i, j int) bool { return excluded[i].Name < excluded[j].Name })

	return types.FunctionPlan{
		QualifiedName:      qualifiedName,
		Range:              v.buf.EncodedRange(pysrc.NodeRange(def)),
		Renames:            renames,
		ExcludedNames:      excluded,
		HasNestedFunctions: c.hasNested || c.hasComprehension || c.hasMatch,
		Bailout:            bailout,
	}
}

// scopeCollector accumulates bindings and safety signals for one
// function's own scope. Nested function, class, and lambda bodies are
// not entered; their presence is only recorded.
type scopeCollector struct {
	tree *pysrc.Tree

	order    []string
	seen     map[string]bool
	excluded map[string]types.ExcludeReason

	globals   map[string]bool
	nonlocals map[string]bool

	hasNested        bool
	hasDeclaration   bool
	hasComprehension bool
	hasMatch         bool
	hasReflection    bool

	attrWrites    []string
	fstringIdents map[string]bool
}

func newScopeCollector(tree *pysrc.Tree) *scopeCollector {
	return &scopeCollector{
		tree:          tree,
		seen:          make(map[string]bool),
		excluded:      make(map[string]types.ExcludeReason),
		globals:       make(map[string]bool),
		nonlocals:     make(map[string]bool),
		fstringIdents: make(map[string]bool),
	}
}

// declareScope pre-scans the scope for global/nonlocal declarations so
// late declarations still exclude earlier bindings.
func (c *scopeCollector) declareScope(body *sitter.Node) {
	if body == nil {
		return
	}
	pysrc.Walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case pysrc.KindFunctionDef, pysrc.KindClassDef, pysrc.KindLambda:
			return false
		case pysrc.KindGlobalStatement:
			pysrc.EachNamedChild(n, func(id *sitter.Node) {
				name := c.tree.Text(id)
				c.globals[name] = true
				c.exclude(name, types.ExcludeGlobal)
			})
		case pysrc.KindNonlocalStatement:
			pysrc.EachNamedChild(n, func(id *sitter.Node) {
				name := c.tree.Text(id)
				c.nonlocals[name] = true
				c.exclude(name, types.ExcludeNonlocal)
			})
		}
		return true
	})
}

func (c *scopeCollector) exclude(name string, reason types.ExcludeReason) {
	if _, ok := c.excluded[name]; !ok {
		c.excluded[name] = reason
	}
	if c.seen[name] {
		delete(c.seen, name)
		kept := c.order[:0]
		for _, existing := range c.order {
			if existing != name {
				kept = append(kept, existing)
			}
		}
		c.order = kept
	}
}

// addBinding records a binding site, routing excludable names to the
// excluded list instead.
func (c *scopeCollector) addBinding(name string) {
	if name == "" {
		return
	}
	if reason, bad := c.excludeReason(name); bad {
		c.exclude(name, reason)
		return
	}
	if !c.seen[name] {
		c.seen[name] = true
		c.order = append(c.order, name)
	}
}

func (c *scopeCollector) excludeReason(name string) (types.ExcludeReason, bool) {
	switch {
	case name == "_":
		return types.ExcludeUnderscore, true
	case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") && len(name) > 4:
		return types.ExcludeDunder, true
	case keywordSet[name]:
		return types.ExcludeKeyword, true
	case builtinSet[name]:
		return types.ExcludeBuiltin, true
	case name == "self" || name == "cls":
		return types.ExcludeReserved, true
	case c.globals[name]:
		return types.ExcludeGlobal, true
	case c.nonlocals[name]:
		return types.ExcludeNonlocal, true
	}
	return "", false
}

// collectParameters walks the parameter list in slot order, which is
// also source order in the grammar: positional-only, normal, vararg,
// keyword-only, kwarg.
func (c *scopeCollector) collectParameters(params *sitter.Node) {
	if params == nil {
		return
	}
	pysrc.EachNamedChild(params, func(p *sitter.Node) {
		switch p.Type() {
		case pysrc.KindIdentifier:
			c.addBinding(c.tree.Text(p))
		case pysrc.KindDefaultParameter, pysrc.KindTypedDefaultParam:
			if name := p.ChildByFieldName("name"); name != nil {
				c.collectTargets(name)
			}
		case pysrc.KindTypedParameter:
			if p.NamedChildCount() > 0 {
				c.collectTargets(p.NamedChild(0))
			}
		case pysrc.KindListSplatPattern, pysrc.KindDictSplatPattern:
			if p.NamedChildCount() > 0 {
				c.collectTargets(p.NamedChild(0))
			}
		}
	})
}

// walkScope visits the function's own statements and expressions,
// collecting binding sites and safety signals.
func (c *scopeCollector) walkScope(scope *sitter.Node) {
	pysrc.Walk(scope, func(n *sitter.Node) bool {
		if n == scope {
			return true
		}
		switch n.Type() {
		case pysrc.KindFunctionDef, pysrc.KindClassDef, pysrc.KindLambda:
			c.hasNested = true
			return false
		case pysrc.KindGlobalStatement, pysrc.KindNonlocalStatement:
			c.hasDeclaration = true
			return false // names handled by declareScope
		case pysrc.KindMatchStatement:
			c.hasMatch = true
			return false
		case pysrc.KindListComprehension, pysrc.KindSetComprehension,
			pysrc.KindDictComprehension, pysrc.KindGeneratorExp:
			c.hasComprehension = true
			return false
		case pysrc.KindAssignment, pysrc.KindAugAssignment:
			if left := n.ChildByFieldName("left"); left != nil {
				c.collectTargets(left)
			}
			return true
		case pysrc.KindNamedExpression:
			if name := n.ChildByFieldName("name"); name != nil && name.Type() == pysrc.KindIdentifier {
				c.addBinding(c.tree.Text(name))
			}
			return true
		case pysrc.KindForStatement:
			if left := n.ChildByFieldName("left"); left != nil {
				c.collectTargets(left)
			}
			return true
		case pysrc.KindAsPattern:
			if alias := n.ChildByFieldName("alias"); alias != nil {
				c.collectTargets(alias)
			}
			return true
		case pysrc.KindExceptClause:
			// Grammar variants put the binding either in an as_pattern
			// (handled above) or as a bare identifier after `as`.
			if n.NamedChildCount() >= 2 {
				second := n.NamedChild(1)
				if second.Type() == pysrc.KindIdentifier {
					c.addBinding(c.tree.Text(second))
				}
			}
			return true
		case pysrc.KindImport:
			c.collectFunctionImport(n)
			return false
		case pysrc.KindImportFrom:
			c.collectFunctionFromImport(n)
			return false
		case pysrc.KindCall:
			if fn := n.ChildByFieldName("function"); fn != nil &&
				fn.Type() == pysrc.KindIdentifier && reflectionCallees[c.tree.Text(fn)] {
				c.hasReflection = true
			}
			return true
		case pysrc.KindInterpolation:
			pysrc.Walk(n, func(id *sitter.Node) bool {
				if id.Type() == pysrc.KindIdentifier {
					c.fstringIdents[c.tree.Text(id)] = true
				}
				return true
			})
			return false
		}
		return true
	})
}

// collectTargets descends tuple/list/star targets to simple names.
// Attribute writes are recorded for the attribute-sync check; they are
// not local bindings.
func (c *scopeCollector) collectTargets(n *sitter.Node) {
	switch n.Type() {
	case pysrc.KindIdentifier:
		c.addBinding(c.tree.Text(n))
	case pysrc.KindAsPatternTarget:
		pysrc.EachNamedChild(n, func(child *sitter.Node) { c.collectTargets(child) })
	case pysrc.KindTuplePattern, pysrc.KindListPattern, pysrc.KindPatternList,
		pysrc.KindListSplatPattern, "parenthesized_expression", "tuple", "list":
		pysrc.EachNamedChild(n, func(child *sitter.Node) { c.collectTargets(child) })
	case pysrc.KindAttribute:
		if attr := n.ChildByFieldName("attribute"); attr != nil {
			c.attrWrites = append(c.attrWrites, c.tree.Text(attr))
		}
	}
}

// collectFunctionImport records bindings from `import ...` inside a
// function body: the alias when present, otherwise the first dotted
// segment; dotted plain imports are excluded because the dotted form
// is what later code spells.
func (c *scopeCollector) collectFunctionImport(n *sitter.Node) {
	pysrc.EachNamedChild(n, func(child *sitter.Node) {
		switch child.Type() {
		case pysrc.KindAliasedImport:
			if alias := child.ChildByFieldName("alias"); alias != nil {
				c.addBinding(c.tree.Text(alias))
			}
		case pysrc.KindDottedName:
			module := c.tree.Text(child)
			if strings.ContainsRune(module, '.') {
				c.exclude(topSegment(module), types.ExcludeDottedImport)
			} else {
				c.addBinding(module)
			}
		}
	})
}

// collectFunctionFromImport records bindings from `from m import ...`
// inside a function body. Star imports bind unknowable names and
// contribute no entries.
func (c *scopeCollector) collectFunctionFromImport(n *sitter.Node) {
	module := n.ChildByFieldName("module_name")
	pysrc.EachNamedChild(n, func(child *sitter.Node) {
		if pysrc.SameNode(child, module) {
			return
		}
		switch child.Type() {
		case pysrc.KindAliasedImport:
			if alias := child.ChildByFieldName("alias"); alias != nil {
				c.addBinding(c.tree.Text(alias))
			}
		case pysrc.KindDottedName:
			c.addBinding(topSegment(c.tree.Text(child)))
		}
	})
}

func topSegment(dotted string) string {
	if idx := strings.IndexByte(dotted, '.'); idx >= 0 {
		return dotted[:idx]
	}
	return dotted
}

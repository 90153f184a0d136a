// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package rewrite applies a module plan to source text, renaming
// approved function locals and stripping docstrings while preserving
// every byte it does not explicitly alter.
// Implements: prd004-rewriter R1 (preservation contract), R2 (edit
//
//	sites), R3 (docstring stripping), R4 (bailout ranges).
package rewrite

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/petar-djukic/pytrim/internal/pysrc"
	"github.com/petar-djukic/pytrim/pkg/types"
)

// DriftError reports that a plan's byte ranges no longer align with
// the source at application time.
type DriftError struct {
	QualifiedName string
	Offset        int
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("plan drift: no matching definition of %q at byte %d",
		e.QualifiedName, e.Offset)
}

// Result reports what a plan application did.
type Result struct {
	Output     []byte
	Changed    bool
	Renames    int // Identifier edit sites rewritten
	Docstrings int // Docstring statements removed
	Bailouts   int // Functions copied through untouched
}

// ApplyPlan rewrites raw file bytes according to plan. The output
// keeps the input's encoding, BOM, line-ending style, and
// final-newline state. Plan ranges address the original encoded
// bytes; they are translated onto the decoded buffer before any
// lookup.
func ApplyPlan(ctx context.Context, raw []byte, plan *types.ModulePlan) (*Result, error) {
	buf, err := pysrc.NewBuffer(raw)
	if err != nil {
		return nil, err
	}
	tree, err := pysrc.Parse(ctx, buf.Text)
	if err != nil {
		return nil, err
	}

	rw := &rewriter{tree: tree, text: buf.Text, plan: planInDecodedSpace(buf, plan)}
	if err := rw.run(); err != nil {
		return nil, err
	}

	out, err := applyEdits(buf.Text, rw.edits)
	if err != nil {
		return nil, err
	}
	out = fixFinalNewline(out, buf.Info)
	encoded, err := pysrc.Encode(out, buf.Info)
	if err != nil {
		return nil, err
	}
	return &Result{
		Output:     encoded,
		Changed:    len(rw.edits) > 0,
		Renames:    rw.renameCount,
		Docstrings: rw.docstringCount,
		Bailouts:   rw.bailoutCount,
	}, nil
}

// planInDecodedSpace rebuilds a plan with every range converted from
// encoded-byte offsets onto the decoded buffer. Ranges that do not
// land on rune boundaries become {-1, -1}, which the header lookup
// then reports as drift.
func planInDecodedSpace(buf *pysrc.Buffer, plan *types.ModulePlan) *types.ModulePlan {
	if buf.Identity() {
		return plan
	}
	clone := *plan
	clone.Functions = make([]types.FunctionPlan, len(plan.Functions))
	for i, fp := range plan.Functions {
		fp.Range = buf.DecodedRange(fp.Range)
		clone.Functions[i] = fp
	}
	clone.Docstrings = make([]types.DocstringRef, len(plan.Docstrings))
	for i, ref := range plan.Docstrings {
		ref.Range = buf.DecodedRange(ref.Range)
		clone.Docstrings[i] = ref
	}
	return &clone
}

type rewriter struct {
	tree *pysrc.Tree
	text []byte
	plan *types.ModulePlan

	edits          []edit
	renameCount    int
	docstringCount int
	bailoutCount   int

	// lockedRanges covers bailout functions; nothing inside is edited
	// except each bailout function's own leading docstring.
	lockedRanges []types.Range
	// ownDocstrings holds the docstring ranges still deletable inside
	// locked ranges.
	ownDocstrings map[types.Range]bool
}

func (rw *rewriter) run() error {
	rw.ownDocstrings = make(map[types.Range]bool)

	defs := indexDefinitions(rw.tree)

	for i := range rw.plan.Functions {
		fp := &rw.plan.Functions[i]
		def, ok := defs[fp.Range.Start]
		if !ok || !headerMatches(rw.tree, def, fp.QualifiedName) {
			return &DriftError{QualifiedName: fp.QualifiedName, Offset: fp.Range.Start}
		}
		if rw.insideLocked(fp.Range) {
			continue // nested inside a bailout; not entered
		}
		if fp.Bailout {
			rw.bailoutCount++
			rw.lockedRanges = append(rw.lockedRanges, fp.Range)
			if doc := pysrc.Docstring(def.ChildByFieldName("body")); doc != nil {
				rw.ownDocstrings[pysrc.NodeRange(doc)] = true
			}
			continue
		}
		if len(fp.Renames) > 0 {
			rw.collectRenameEdits(def, fp)
		}
	}

	rw.collectDocstringEdits()
	return nil
}

func (rw *rewriter) insideLocked(r types.Range) bool {
	for _, locked := range rw.lockedRanges {
		if locked.Contains(r) && locked != r {
			return true
		}
	}
	return false
}

// indexDefinitions maps every function definition's start byte to its
// node. Plans address functions by range.start and the header is
// re-validated there; matching on the end as well would break
// re-application after the text shrank.
func indexDefinitions(tree *pysrc.Tree) map[int]*sitter.Node {
	defs := make(map[int]*sitter.Node)
	pysrc.Walk(tree.Root, func(n *sitter.Node) bool {
		if pysrc.IsFunctionDef(n) {
			defs[int(n.StartByte())] = n
		}
		return true
	})
	return defs
}

// headerMatches checks that the definition at the plan's range still
// declares the function the plan was computed for.
func headerMatches(tree *pysrc.Tree, def *sitter.Node, qualifiedName string) bool {
	segments := strings.Split(qualifiedName, ".")
	return pysrc.DefName(tree, def) == segments[len(segments)-1]
}

// collectRenameEdits walks a bailout-free function and records one
// edit per identifier occurrence of a planned name. Attribute
// right-hand sides, keyword-argument names, import name literals,
// annotations, and f-string interpolations are never touched; plain
// import bindings are renamed by inserting an `as` alias.
func (rw *rewriter) collectRenameEdits(def *sitter.Node, fp *types.FunctionPlan) {
	renames := make(map[string]string, len(fp.Renames))
	for _, entry := range fp.Renames {
		renames[entry.Original] = entry.Renamed
	}
	rw.walkRename(def, fp, renames)
}

func (rw *rewriter) walkRename(n *sitter.Node, fp *types.FunctionPlan, renames map[string]string) {
	switch n.Type() {
	case pysrc.KindType:
		return // annotation context: parameter, return, or variable annotations
	case pysrc.KindInterpolation:
		return
	case pysrc.KindImport, pysrc.KindImportFrom:
		rw.importEdits(n, fp, renames)
		return
	case pysrc.KindIdentifier:
		if !rw.identifierEditable(n) {
			return
		}
		name := rw.tree.Text(n)
		if renamed, ok := renames[name]; ok {
			rw.addRename(n, fp, renamed)
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		rw.walkRename(n.Child(i), fp, renames)
	}
}

// identifierEditable rejects the lexical positions where an identifier
// spelling is not a reference to the local binding.
func (rw *rewriter) identifierEditable(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case pysrc.KindAttribute:
		if attr := parent.ChildByFieldName("attribute"); pysrc.SameNode(attr, n) {
			return false
		}
	case pysrc.KindKeywordArgument:
		if name := parent.ChildByFieldName("name"); pysrc.SameNode(name, n) {
			return false
		}
	case pysrc.KindDottedName:
		return false // import literals are handled by importEdits
	}
	return true
}

func (rw *rewriter) addRename(n *sitter.Node, fp *types.FunctionPlan, renamed string) {
	r := pysrc.NodeRange(n)
	if !fp.Range.Contains(r) {
		return
	}
	rw.edits = append(rw.edits, edit{start: r.Start, end: r.End, text: renamed})
	rw.renameCount++
}

// importEdits handles import statements inside a rewritten function.
// A plain `import m` or `from p import n` whose binding was renamed
// gains an `as` alias; existing aliases are ordinary identifiers and
// are renamed in place. The literal module and name spellings are
// preserved.
func (rw *rewriter) importEdits(n *sitter.Node, fp *types.FunctionPlan, renames map[string]string) {
	module := n.ChildByFieldName("module_name")
	pysrc.EachNamedChild(n, func(child *sitter.Node) {
		if pysrc.SameNode(child, module) {
			return
		}
		switch child.Type() {
		case pysrc.KindAliasedImport:
			if alias := child.ChildByFieldName("alias"); alias != nil {
				if renamed, ok := renames[rw.tree.Text(alias)]; ok {
					rw.addRename(alias, fp, renamed)
				}
			}
		case pysrc.KindDottedName:
			spelled := rw.tree.Text(child)
			if strings.ContainsRune(spelled, '.') {
				return // dotted plain import; binding was excluded
			}
			if renamed, ok := renames[spelled]; ok {
				r := pysrc.NodeRange(child)
				if fp.Range.Contains(r) {
					rw.edits = append(rw.edits, edit{
						start: r.Start,
						end:   r.End,
						text:  spelled + " as " + renamed,
					})
					rw.renameCount++
				}
			}
		}
	})
}

// collectDocstringEdits deletes every planned docstring outside locked
// ranges, plus each bailout function's own docstring. A deleted
// docstring that was alone on its line(s) takes the lines with it; a
// body left empty gets a synthesized pass.
func (rw *rewriter) collectDocstringEdits() {
	for _, ref := range rw.plan.Docstrings {
		if rw.docstringSuppressed(ref.Range) {
			continue
		}
		stmt := rw.statementAt(ref.Range)
		if stmt == nil {
			continue // source drifted under the ref; header checks already gate plans
		}
		rw.docstringCount++
		if bodyWouldEmpty(stmt) {
			rw.edits = append(rw.edits, edit{start: ref.Range.Start, end: ref.Range.End, text: "pass"})
			continue
		}
		start, end := expandToLines(rw.text, ref.Range.Start, ref.Range.End)
		rw.edits = append(rw.edits, edit{start: start, end: end})
	}
}

// docstringSuppressed reports whether ref lies inside a bailout range
// without being that function's own leading docstring.
func (rw *rewriter) docstringSuppressed(r types.Range) bool {
	for _, locked := range rw.lockedRanges {
		if locked.Contains(r) {
			return !rw.ownDocstrings[r]
		}
	}
	return false
}

// statementAt finds the expression statement whose range matches r.
func (rw *rewriter) statementAt(r types.Range) *sitter.Node {
	var found *sitter.Node
	pysrc.Walk(rw.tree.Root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		nr := pysrc.NodeRange(n)
		if nr.Start > r.Start || nr.End < r.End {
			return false
		}
		if nr == r && n.Type() == pysrc.KindExpressionStmt {
			found = n
			return false
		}
		return true
	})
	return found
}

// bodyWouldEmpty reports whether stmt is the sole statement of a
// function or class body, which must not be left empty.
func bodyWouldEmpty(stmt *sitter.Node) bool {
	block := stmt.Parent()
	if block == nil || block.Type() != pysrc.KindBlock || block.NamedChildCount() != 1 {
		return false
	}
	owner := block.Parent()
	if owner == nil {
		return false
	}
	return owner.Type() == pysrc.KindFunctionDef || owner.Type() == pysrc.KindClassDef
}

// expandToLines widens a deletion span to consume whole lines when the
// docstring was alone on them: leading indentation before start and
// the trailing newline after end, but only if nothing else shares
// either line.
func expandToLines(text []byte, start, end int) (int, int) {
	lineStart := start
	for lineStart > 0 && (text[lineStart-1] == ' ' || text[lineStart-1] == '\t') {
		lineStart--
	}
	leadingClear := lineStart == 0 || text[lineStart-1] == '\n' || text[lineStart-1] == '\r'

	tail := end
	for tail < len(text) && (text[tail] == ' ' || text[tail] == '\t') {
		tail++
	}
	trailingClear := tail == len(text) || text[tail] == '\n' || text[tail] == '\r'

	if !leadingClear || !trailingClear {
		return start, end
	}
	if tail < len(text) {
		if text[tail] == '\r' && tail+1 < len(text) && text[tail+1] == '\n' {
			tail += 2
		} else {
			tail++
		}
	}
	return lineStart, tail
}

// fixFinalNewline restores the input's trailing-newline state when
// line deletions at end of file disturbed it.
func fixFinalNewline(out []byte, info pysrc.SourceInfo) []byte {
	if len(out) == 0 {
		return out
	}
	last := out[len(out)-1]
	endsWithNewline := last == '\n' || last == '\r'
	if info.FinalNewline && !endsWithNewline {
		return append(out, []byte(info.LineEnding)...)
	}
	return out
}

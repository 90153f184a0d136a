// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pysrc

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/petar-djukic/pytrim/pkg/types"
)

// Node kind names from the tree-sitter Python grammar used across the
// analyzers.
const (
	KindModule             = "module"
	KindFunctionDef        = "function_definition"
	KindClassDef           = "class_definition"
	KindDecoratedDef       = "decorated_definition"
	KindLambda             = "lambda"
	KindImport             = "import_statement"
	KindImportFrom         = "import_from_statement"
	KindFutureImport       = "future_import_statement"
	KindAliasedImport      = "aliased_import"
	KindDottedName         = "dotted_name"
	KindRelativeImport     = "relative_import"
	KindWildcardImport     = "wildcard_import"
	KindAssignment         = "assignment"
	KindAugAssignment      = "augmented_assignment"
	KindNamedExpression    = "named_expression"
	KindForStatement       = "for_statement"
	KindWithStatement      = "with_statement"
	KindWithItem           = "with_item"
	KindAsPattern          = "as_pattern"
	KindAsPatternTarget    = "as_pattern_target"
	KindExceptClause       = "except_clause"
	KindGlobalStatement    = "global_statement"
	KindNonlocalStatement  = "nonlocal_statement"
	KindMatchStatement     = "match_statement"
	KindExpressionStmt     = "expression_statement"
	KindString             = "string"
	KindConcatenatedString = "concatenated_string"
	KindInterpolation      = "interpolation"
	KindIdentifier         = "identifier"
	KindAttribute          = "attribute"
	KindCall               = "call"
	KindKeywordArgument    = "keyword_argument"
	KindParameters         = "parameters"
	KindTypedParameter     = "typed_parameter"
	KindDefaultParameter   = "default_parameter"
	KindTypedDefaultParam  = "typed_default_parameter"
	KindListSplatPattern   = "list_splat_pattern"
	KindDictSplatPattern   = "dictionary_splat_pattern"
	KindTuplePattern       = "tuple_pattern"
	KindListPattern        = "list_pattern"
	KindPatternList        = "pattern_list"
	KindListComprehension  = "list_comprehension"
	KindSetComprehension   = "set_comprehension"
	KindDictComprehension  = "dictionary_comprehension"
	KindGeneratorExp       = "generator_expression"
	KindType               = "type"
	KindBlock              = "block"
)

// comprehensionKinds lists the four comprehension node kinds.
var comprehensionKinds = map[string]bool{
	KindListComprehension: true,
	KindSetComprehension:  true,
	KindDictComprehension: true,
	KindGeneratorExp:      true,
}

// IsComprehension reports whether the node is any comprehension form.
func IsComprehension(n *sitter.Node) bool {
	return comprehensionKinds[n.Type()]
}

// IsFunctionDef reports whether the node is a (sync or async) function
// definition. The grammar folds async into function_definition.
func IsFunctionDef(n *sitter.Node) bool {
	return n.Type() == KindFunctionDef
}

// NodeRange returns the node's byte range over the decoded source.
func NodeRange(n *sitter.Node) types.Range {
	return types.Range{Start: int(n.StartByte()), End: int(n.EndByte())}
}

// NamedChildren returns the node's named children in order.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	children := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		children = append(children, n.NamedChild(i))
	}
	return children
}

// EachNamedChild calls fn for every named child in order.
func EachNamedChild(n *sitter.Node, fn func(*sitter.Node)) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		fn(n.NamedChild(i))
	}
}

// Unwrap descends through decorated_definition wrappers so callers see
// the function or class definition itself. Function ranges start at
// the def/async keyword; decorators sit outside the range.
func Unwrap(n *sitter.Node) *sitter.Node {
	if n.Type() == KindDecoratedDef {
		if def := n.ChildByFieldName("definition"); def != nil {
			return def
		}
	}
	return n
}

// DefName returns the declared name of a function or class definition,
// or "" when absent.
func DefName(t *Tree, def *sitter.Node) string {
	name := def.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	return t.Text(name)
}

// SameNode reports whether two nodes denote the same source span.
func SameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil &&
		a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() &&
		a.Type() == b.Type()
}

// Walk visits n and all descendants top-down. Returning false from fn
// prunes the subtree. A nil node is a no-op, so callers can pass
// optional fields straight through.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		Walk(n.Child(i), fn)
	}
}

// IdentifiersIn collects the text of every identifier node within the
// subtree, excluding string contents (which are never identifier
// nodes). Used to build a function's identifier surface.
func IdentifiersIn(t *Tree, n *sitter.Node) map[string]bool {
	seen := make(map[string]bool)
	Walk(n, func(child *sitter.Node) bool {
		if child.Type() == KindIdentifier {
			seen[t.Text(child)] = true
		}
		return true
	})
	return seen
}

// Docstring returns the string expression statement opening a
// module/class/function body, or nil. Only a plain or concatenated
// string literal as the first statement qualifies; comments do not
// displace it.
func Docstring(body *sitter.Node) *sitter.Node {
	if body == nil {
		return nil
	}
	var first *sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		first = child
		break
	}
	if first == nil || first.Type() != KindExpressionStmt || first.NamedChildCount() != 1 {
		return nil
	}
	expr := first.NamedChild(0)
	if expr.Type() != KindString && expr.Type() != KindConcatenatedString {
		return nil
	}
	return first
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package pysrc wraps the tree-sitter Python grammar behind the node
// kinds the analyzers need, and detects and preserves source encodings.
// Implements: prd002-python-frontend R1 (parser adapter), R2 (encoding).
package pysrc

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParseFailure reports unparseable Python source with the location of
// the first offending token.
type ParseFailure struct {
	Line    int // 1-based
	Column  int // 1-based
	Message string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// Tree is a parsed Python module plus the decoded source it was parsed
// from. Byte ranges on nodes index into Source.
type Tree struct {
	Root   *sitter.Node
	Source []byte
}

// Parse parses decoded (UTF-8) Python source. Sources containing
// syntax errors yield a *ParseFailure.
func Parse(ctx context.Context, source []byte) (*Tree, error) {
	root, err := sitter.ParseCtx(ctx, source, python.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("parsing python source: %w", err)
	}
	if bad := firstErrorNode(root); bad != nil {
		point := bad.StartPoint()
		msg := "invalid syntax"
		if bad.IsMissing() {
			msg = fmt.Sprintf("missing %s", bad.Type())
		}
		return nil, &ParseFailure{
			Line:    int(point.Row) + 1,
			Column:  int(point.Column) + 1,
			Message: msg,
		}
	}
	return &Tree{Root: root, Source: source}, nil
}

// firstErrorNode finds the first ERROR or MISSING node in a pre-order
// walk, if any.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstErrorNode(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

// Text returns the source text covered by a node.
func (t *Tree) Text(n *sitter.Node) string {
	return n.Content(t.Source)
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package types defines shared types used across pytrim packages.
// Implements: prd001-plan-model R1 (module plan), R2 (distribution records),
//
//	R3 (file outcomes).
package types

// PlanFormatVersion is the plan format produced by this build. Appliers
// reject plans whose declared version is strictly greater.
const PlanFormatVersion = "1"

// PythonSyntaxTarget names the newest Python syntax the planner accepts.
const PythonSyntaxTarget = "3.12"

// Range is a half-open [Start, End) byte interval. Ranges stored in a
// plan address the original encoded bytes (BOM included); analysis code
// also uses Range for offsets into the decoded buffer.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// RenameEntry maps an original function-local name to its replacement.
type RenameEntry struct {
	Original string `json:"original"`
	Renamed  string `json:"renamed"`
}

// ExcludeReason explains why a binding was withheld from renaming.
type ExcludeReason string

const (
	ExcludeKeyword      ExcludeReason = "keyword"
	ExcludeBuiltin      ExcludeReason = "builtin"
	ExcludeDunder       ExcludeReason = "dunder"
	ExcludeUnderscore   ExcludeReason = "underscore"
	ExcludeReserved     ExcludeReason = "reserved"
	ExcludeGlobal       ExcludeReason = "global"
	ExcludeNonlocal     ExcludeReason = "nonlocal"
	ExcludeDottedImport ExcludeReason = "dotted-import"
	ExcludeStarImport   ExcludeReason = "star-import"
)

// ExcludedName records a binding observed in scope but not renamed.
type ExcludedName struct {
	Name   string        `json:"name"`
	Reason ExcludeReason `json:"reason"`
}

// FunctionPlan is the rename plan for a single function definition.
type FunctionPlan struct {
	// QualifiedName is the dotted path from the module root, e.g.
	// "outer.inner" or "Config.validate".
	QualifiedName string `json:"qualified_name"`
	// Range covers the definition from its def/async keyword through
	// the end of its body.
	Range Range `json:"range"`
	// Renames lists replacements in source order of first binding.
	Renames []RenameEntry `json:"renames"`
	// ExcludedNames lists bindings observed but withheld, with reasons.
	ExcludedNames []ExcludedName `json:"excluded_names"`
	// HasNestedFunctions is true when the function transitively
	// contains another function, class, comprehension, or match.
	HasNestedFunctions bool `json:"has_nested_functions"`
	// Bailout marks the function unsafe to rewrite; the rewriter
	// copies its bytes through unchanged except for deleting its own
	// leading docstring.
	Bailout bool `json:"bailout"`
}

// RenameFor returns the replacement for name, if planned.
func (p *FunctionPlan) RenameFor(name string) (string, bool) {
	for _, entry := range p.Renames {
		if entry.Original == name {
			return entry.Renamed, true
		}
	}
	return "", false
}

// ModulePlan aggregates function plans and docstring ranges for one
// source file. Planning is pure: the same source always yields a
// byte-identical plan.
type ModulePlan struct {
	FormatVersion      string         `json:"format_version"`
	PythonSyntaxTarget string         `json:"python_syntax_target"`
	Module             string         `json:"module"`
	Keywords           []string       `json:"keywords"`
	Builtins           []string       `json:"builtins"`
	Docstrings         []DocstringRef `json:"docstrings"`
	Functions          []FunctionPlan `json:"functions"`
}

// DocstringRef records the byte range of a docstring statement slated
// for deletion.
type DocstringRef struct {
	Range Range `json:"range"`
}

// BundleEntry pairs a relative file path with its plan inside a
// directory plan bundle.
type BundleEntry struct {
	Path string     `json:"path"`
	Plan ModulePlan `json:"plan"`
}

// PlanBundle is the product of planning a whole directory. Entries are
// sorted by path for reproducibility.
type PlanBundle struct {
	FormatVersion string        `json:"format_version"`
	Entries       []BundleEntry `json:"entries"`
}

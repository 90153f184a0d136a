// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package planfile reads and writes versioned plan JSON, gating on the
// format version. Plans are checked against current source by
// rewrite.ApplyPlan, not here.
// Implements: prd005-plan-io R1 (serialization), R2 (version gate),
//
//	R3 (drift validation).
package planfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/petar-djukic/pytrim/pkg/types"
)

// VersionError reports a plan written by a newer producer than this
// build understands.
type VersionError struct {
	Found string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("plan format version %q is newer than supported version %q",
		e.Found, types.PlanFormatVersion)
}

// SchemaError reports a malformed plan document.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "invalid plan: " + e.Reason
}

// MarshalPlan renders a module plan as stable, indented JSON. Field
// order is fixed by the struct definitions, so planning the same
// source twice produces byte-identical documents.
func MarshalPlan(plan *types.ModulePlan) ([]byte, error) {
	out, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling plan: %w", err)
	}
	return append(out, '\n'), nil
}

// MarshalBundle renders a directory plan bundle. Entries must already
// be sorted by path.
func MarshalBundle(bundle *types.PlanBundle) ([]byte, error) {
	out, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling plan bundle: %w", err)
	}
	return append(out, '\n'), nil
}

// UnmarshalPlan parses plan JSON, accepting additive unknown fields
// and rejecting versions newer than this build supports. A numeric
// format_version is a schema error: the field is a string by contract.
func UnmarshalPlan(data []byte) (*types.ModulePlan, error) {
	if err := checkVersion(data); err != nil {
		return nil, err
	}
	var plan types.ModulePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}
	return &plan, nil
}

// UnmarshalBundle parses a plan bundle produced by minify-plan-dir.
func UnmarshalBundle(data []byte) (*types.PlanBundle, error) {
	if err := checkVersion(data); err != nil {
		return nil, err
	}
	var bundle types.PlanBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}
	for i := range bundle.Entries {
		if bundle.Entries[i].Path == "" {
			return nil, &SchemaError{Reason: fmt.Sprintf("entry %d has no path", i)}
		}
	}
	return &bundle, nil
}

func checkVersion(data []byte) error {
	var envelope struct {
		FormatVersion json.RawMessage `json:"format_version"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return &SchemaError{Reason: err.Error()}
	}
	raw := bytes.TrimSpace(envelope.FormatVersion)
	if len(raw) == 0 {
		return &SchemaError{Reason: "missing format_version"}
	}
	if raw[0] != '"' {
		return &SchemaError{Reason: "format_version must be a string"}
	}
	var version string
	if err := json.Unmarshal(raw, &version); err != nil {
		return &SchemaError{Reason: err.Error()}
	}
	found, err := strconv.Atoi(version)
	if err != nil {
		return &SchemaError{Reason: fmt.Sprintf("unrecognized format_version %q", version)}
	}
	supported, _ := strconv.Atoi(types.PlanFormatVersion)
	if found > supported {
		return &VersionError{Found: version}
	}
	return nil
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package planfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/pytrim/pkg/types"
)

func samplePlan() *types.ModulePlan {
	return &types.ModulePlan{
		FormatVersion:      types.PlanFormatVersion,
		PythonSyntaxTarget: types.PythonSyntaxTarget,
		Module:             "sample",
		Keywords:           []string{"def", "return"},
		Builtins:           []string{"len"},
		Docstrings:         []types.DocstringRef{{Range: types.Range{Start: 0, End: 10}}},
		Functions: []types.FunctionPlan{
			{
				QualifiedName: "f",
				Range:         types.Range{Start: 11, End: 40},
				Renames:       []types.RenameEntry{{Original: "value", Renamed: "a"}},
				ExcludedNames: []types.ExcludedName{{Name: "self", Reason: types.ExcludeReserved}},
			},
		},
	}
}

func TestPlanRoundTrip(t *testing.T) {
	out, err := MarshalPlan(samplePlan())
	require.NoError(t, err)

	back, err := UnmarshalPlan(out)
	require.NoError(t, err)
	assert.Equal(t, samplePlan(), back)
}

func TestMarshalPlan_Deterministic(t *testing.T) {
	a, err := MarshalPlan(samplePlan())
	require.NoError(t, err)
	b, err := MarshalPlan(samplePlan())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUnmarshalPlan_VersionGate(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr any
	}{
		{
			name:    "newer version rejected",
			data:    `{"format_version": "2", "module": "m"}`,
			wantErr: &VersionError{},
		},
		{
			name:    "numeric version rejected",
			data:    `{"format_version": 1, "module": "m"}`,
			wantErr: &SchemaError{},
		},
		{
			name:    "missing version rejected",
			data:    `{"module": "m"}`,
			wantErr: &SchemaError{},
		},
		{
			name:    "garbage version rejected",
			data:    `{"format_version": "latest"}`,
			wantErr: &SchemaError{},
		},
		{
			name:    "not json",
			data:    `]]]`,
			wantErr: &SchemaError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalPlan([]byte(tt.data))
			require.Error(t, err)
			switch want := tt.wantErr.(type) {
			case *VersionError:
				assert.ErrorAs(t, err, &want)
			case *SchemaError:
				assert.ErrorAs(t, err, &want)
			}
		})
	}
}

func TestUnmarshalPlan_AdditiveFieldsAccepted(t *testing.T) {
	data := `{
  "format_version": "1",
  "python_syntax_target": "3.12",
  "module": "m",
  "keywords": [],
  "builtins": [],
  "docstrings": [],
  "functions": [],
  "some_future_field": {"nested": true}
}`
	plan, err := UnmarshalPlan([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "m", plan.Module)
}

func TestBundleRoundTrip(t *testing.T) {
	bundle := &types.PlanBundle{
		FormatVersion: types.PlanFormatVersion,
		Entries: []types.BundleEntry{
			{Path: "pkg/a.py", Plan: *samplePlan()},
			{Path: "pkg/b.py", Plan: *samplePlan()},
		},
	}
	out, err := MarshalBundle(bundle)
	require.NoError(t, err)

	back, err := UnmarshalBundle(out)
	require.NoError(t, err)
	assert.Equal(t, bundle, back)
}

func TestUnmarshalBundle_RejectsEntryWithoutPath(t *testing.T) {
	data := `{"format_version": "1", "entries": [{"plan": {"format_version": "1"}}]}`
	_, err := UnmarshalBundle([]byte(data))
	require.Error(t, err)
	var schema *SchemaError
	assert.ErrorAs(t, err, &schema)
}

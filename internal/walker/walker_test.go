// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/pytrim/pkg/types"
)

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFixture(t, root, "main.py", "import os\n")
	writeFixture(t, root, "pkg/__init__.py", "")
	writeFixture(t, root, "pkg/util.py", "x = 1\n")
	writeFixture(t, root, "pkg/deep/nested.py", "y = 2\n")
	writeFixture(t, root, "docs/readme.md", "# docs\n")
	writeFixture(t, root, ".hidden/secret.py", "z = 3\n")
	writeFixture(t, root, "generated/out.py", "g = 4\n")
	return root
}

func TestCollect_DefaultGlobs(t *testing.T) {
	root := setupTree(t)
	files, err := Collect(root, Policy{Include: []string{"**/*.py"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"generated/out.py",
		"main.py",
		"pkg/__init__.py",
		"pkg/deep/nested.py",
		"pkg/util.py",
	}, files)
}

func TestCollect_ExcludeWinsOverInclude(t *testing.T) {
	root := setupTree(t)
	files, err := Collect(root, Policy{
		Include: []string{"**/*.py"},
		Exclude: []string{"generated/**"},
	})
	require.NoError(t, err)
	assert.NotContains(t, files, "generated/out.py")
	assert.Contains(t, files, "main.py")
}

func TestCollect_MaxDepth(t *testing.T) {
	root := setupTree(t)
	// Root is depth 1; its direct entries are depth 2.
	files, err := Collect(root, Policy{Include: []string{"**/*.py"}, MaxDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.py"}, files)
}

func TestCollect_HiddenSkippedByDefault(t *testing.T) {
	root := setupTree(t)
	files, err := Collect(root, Policy{Include: []string{"**/*.py"}})
	require.NoError(t, err)
	assert.NotContains(t, files, ".hidden/secret.py")

	files, err = Collect(root, Policy{Include: []string{"**/*.py"}, IncludeHidden: true})
	require.NoError(t, err)
	assert.Contains(t, files, ".hidden/secret.py")
}

func TestCollect_CaseInsensitiveGlobs(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "Module.PY", "x = 1\n")
	files, err := Collect(root, Policy{Include: []string{"**/*.py"}, CaseInsensitive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Module.PY"}, files)
}

func TestCollect_RespectGitignore(t *testing.T) {
	root := setupTree(t)
	writeFixture(t, root, ".gitignore", "generated/\n")
	files, err := Collect(root, Policy{
		Include:          []string{"**/*.py"},
		RespectGitignore: true,
	})
	require.NoError(t, err)
	assert.NotContains(t, files, "generated/out.py")
	assert.Contains(t, files, "main.py")
}

func TestCollect_InvalidGlob(t *testing.T) {
	root := setupTree(t)
	_, err := Collect(root, Policy{Include: []string{"[unclosed"}})
	require.Error(t, err)
	var policyErr *PolicyError
	assert.ErrorAs(t, err, &policyErr)
}

func TestCheckOutputPath(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(in, 0o755))

	tests := []struct {
		name    string
		out     string
		wantErr bool
	}{
		{name: "sibling ok", out: filepath.Join(root, "out")},
		{name: "same rejected", out: in, wantErr: true},
		{name: "nested rejected", out: filepath.Join(in, "out"), wantErr: true},
		{name: "dotdot into input rejected", out: filepath.Join(root, "out", "..", "src", "deep"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOutputPath(in, tt.out)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckOutputPath_Symlink(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(in, 0o755))
	link := filepath.Join(root, "alias")
	require.NoError(t, os.Symlink(in, link))

	err := CheckOutputPath(in, filepath.Join(link, "out"))
	assert.Error(t, err, "symlinked path into the input must be rejected")
}

func TestEach_DeterministicAcrossWorkerCounts(t *testing.T) {
	files := []string{"c.py", "a.py", "b.py"}
	run := func(jobs int) *types.DirStats {
		return Each(context.Background(), "root", files, jobs, func(rel string) types.FileStats {
			return types.FileStats{Path: rel, Outcome: types.OutcomeUnchanged, BytesIn: len(rel)}
		})
	}
	serial := run(1)
	parallel := run(8)
	assert.Equal(t, serial.Files, parallel.Files)
	require.Len(t, serial.Files, 3)
	assert.Equal(t, "a.py", serial.Files[0].Path)
}

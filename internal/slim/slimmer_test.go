// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package slim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/pytrim/internal/venv"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// makeEnv builds a venv with used_pkg and unused_pkg installed.
func makeEnv(t *testing.T) string {
	t.Helper()
	envRoot := t.TempDir()
	site := filepath.Join(envRoot, "lib", "python3.12", "site-packages")

	for _, pkg := range []string{"used_pkg", "unused_pkg"} {
		writeFile(t, filepath.Join(site, pkg, "__init__.py"), "def greet():\n    return 'hi'\n")
		writeFile(t, filepath.Join(site, pkg, "data.txt"), "payload\n")
		writeFile(t, filepath.Join(site, pkg, "py.typed"), "")
		info := pkg + "-1.0.dist-info"
		writeFile(t, filepath.Join(site, info, "METADATA"),
			"Name: "+strings.ReplaceAll(pkg, "_", "-")+"\nVersion: 1.0\n\n")
		writeFile(t, filepath.Join(site, info, "top_level.txt"), pkg+"\n")
		writeFile(t, filepath.Join(site, info, "RECORD"), strings.Join([]string{
			pkg + "/__init__.py,sha256=x,1",
			pkg + "/data.txt,sha256=x,1",
			pkg + "/py.typed,,",
			info + "/METADATA,,",
			info + "/RECORD,,",
		}, "\n")+"\n")
	}
	writeFile(t, filepath.Join(envRoot, "pyvenv.cfg"), "home = /usr/bin\n")
	writeFile(t, filepath.Join(envRoot, "bin", "activate"), "# activate\n")
	return envRoot
}

func TestSlim_KeepsOnlyUsedDistributions(t *testing.T) {
	envRoot := makeEnv(t)
	ix, err := venv.Scan(envRoot)
	require.NoError(t, err)

	outRoot := filepath.Join(t.TempDir(), "slim")
	report, err := Slim(ix, []string{"used_pkg", "os"}, outRoot)
	require.NoError(t, err)

	assert.Equal(t, []string{"used-pkg"}, report.Kept)
	assert.Equal(t, []string{"os"}, report.Unresolved)

	outSite := filepath.Join(outRoot, "lib", "python3.12", "site-packages")
	// Every RECORD-listed file of the provider is present.
	for _, rel := range []string{
		"used_pkg/__init__.py",
		"used_pkg/data.txt",
		"used_pkg/py.typed",
		"used_pkg-1.0.dist-info/METADATA",
		"used_pkg-1.0.dist-info/RECORD",
	} {
		_, err := os.Stat(filepath.Join(outSite, filepath.FromSlash(rel)))
		assert.NoError(t, err, "missing %s", rel)
	}
	// Nothing from the unused distribution leaks in.
	_, err = os.Stat(filepath.Join(outSite, "unused_pkg"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(outSite, "unused_pkg-1.0.dist-info"))
	assert.True(t, os.IsNotExist(err))
}

func TestSlim_CopiesVenvBasics(t *testing.T) {
	envRoot := makeEnv(t)
	ix, err := venv.Scan(envRoot)
	require.NoError(t, err)

	outRoot := filepath.Join(t.TempDir(), "slim")
	_, err = Slim(ix, []string{"used_pkg"}, outRoot)
	require.NoError(t, err)

	for _, rel := range []string{"pyvenv.cfg", "bin/activate"} {
		_, err := os.Stat(filepath.Join(outRoot, filepath.FromSlash(rel)))
		assert.NoError(t, err, "missing %s", rel)
	}
}

func TestSlim_NeverInventsFiles(t *testing.T) {
	envRoot := makeEnv(t)
	site := filepath.Join(envRoot, "lib", "python3.12", "site-packages")
	// RECORD lists a file that is absent on disk.
	info := filepath.Join(site, "used_pkg-1.0.dist-info")
	writeFile(t, filepath.Join(info, "RECORD"),
		"used_pkg/__init__.py,sha256=x,1\nused_pkg/ghost.py,sha256=x,1\n")

	ix, err := venv.Scan(envRoot)
	require.NoError(t, err)
	outRoot := filepath.Join(t.TempDir(), "slim")
	_, err = Slim(ix, []string{"used_pkg"}, outRoot)
	require.NoError(t, err)

	outSite := filepath.Join(outRoot, "lib", "python3.12", "site-packages")
	_, err = os.Stat(filepath.Join(outSite, "used_pkg", "ghost.py"))
	assert.True(t, os.IsNotExist(err))
}

func TestSlim_ProviderWithoutRecordCopiedWhole(t *testing.T) {
	envRoot := t.TempDir()
	site := filepath.Join(envRoot, "lib", "python3.12", "site-packages")
	writeFile(t, filepath.Join(site, "editable_pkg", "__init__.py"), "x = 1\n")
	writeFile(t, filepath.Join(site, "editable_pkg", "sub", "mod.py"), "y = 2\n")

	ix, err := venv.Scan(envRoot)
	require.NoError(t, err)
	outRoot := filepath.Join(t.TempDir(), "slim")
	report, err := Slim(ix, []string{"editable_pkg"}, outRoot)
	require.NoError(t, err)
	assert.Equal(t, []string{"editable-pkg"}, report.Kept)

	outSite := filepath.Join(outRoot, "lib", "python3.12", "site-packages")
	_, err = os.Stat(filepath.Join(outSite, "editable_pkg", "sub", "mod.py"))
	assert.NoError(t, err)
}

func TestSlim_EmptyUsedSet(t *testing.T) {
	envRoot := makeEnv(t)
	ix, err := venv.Scan(envRoot)
	require.NoError(t, err)

	outRoot := filepath.Join(t.TempDir(), "slim")
	report, err := Slim(ix, nil, outRoot)
	require.NoError(t, err)
	assert.Empty(t, report.Kept)
	assert.Empty(t, report.Unresolved)
}

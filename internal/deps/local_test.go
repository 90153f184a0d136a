// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package deps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "pyproject.toml"), `[project]
name = "consumer-pkg"

[tool.pytrim.local-dependencies]
core-pkg = "../core_pkg"
extra-pkg = "vendor/extra"
`)
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "consumer-pkg", cfg.Name)
	assert.Equal(t, map[string]string{
		"core-pkg":  "../core_pkg",
		"extra-pkg": "vendor/extra",
	}, cfg.LocalDependencies)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), cfg.Name)
	assert.Empty(t, cfg.LocalDependencies)
}

func TestTraverse_DependencyOrder(t *testing.T) {
	root := t.TempDir()
	consumer := filepath.Join(root, "consumer")
	dep := filepath.Join(root, "dep")
	core := filepath.Join(root, "core")

	writeFixture(t, filepath.Join(consumer, "pyproject.toml"), `[project]
name = "consumer"

[tool.pytrim.local-dependencies]
dep = "../dep"
`)
	writeFixture(t, filepath.Join(dep, "pyproject.toml"), `[project]
name = "dep"

[tool.pytrim.local-dependencies]
core = "../core"
`)
	writeFixture(t, filepath.Join(core, "pyproject.toml"), `[project]
name = "core"
`)

	var order []string
	err := Traverse(consumer, func(dir string, cfg *PackageConfig) error {
		order = append(order, cfg.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "dep", "consumer"}, order)
}

func TestTraverse_VisitsEachPathOnce(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	shared := filepath.Join(root, "shared")

	writeFixture(t, filepath.Join(a, "pyproject.toml"), `[project]
name = "a"

[tool.pytrim.local-dependencies]
b = "../b"
shared = "../shared"
`)
	writeFixture(t, filepath.Join(b, "pyproject.toml"), `[project]
name = "b"

[tool.pytrim.local-dependencies]
shared = "../shared"
`)
	writeFixture(t, filepath.Join(shared, "pyproject.toml"), `[project]
name = "shared"
`)

	var order []string
	err := Traverse(a, func(dir string, cfg *PackageConfig) error {
		order = append(order, cfg.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"shared", "b", "a"}, order)
}

func TestTraverse_MissingDependency(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "pyproject.toml"), `[project]
name = "broken"

[tool.pytrim.local-dependencies]
ghost = "../nowhere"
`)
	err := Traverse(root, func(string, *PackageConfig) error { return nil })
	require.Error(t, err)
}

func TestModuleTargets(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "src", "my_pkg", "__init__.py"), "")
	targets := ModuleTargets(dir, "my-pkg")
	require.Len(t, targets, 1)
	assert.Equal(t, filepath.Join(dir, "src", "my_pkg"), targets[0])
}

func TestModuleTargets_FlatSingleModule(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "tool.py"), "x = 1\n")
	targets := ModuleTargets(dir, "tool")
	require.Len(t, targets, 1)
	assert.Equal(t, filepath.Join(dir, "tool.py"), targets[0])
}

func TestModuleTargets_NoMatch(t *testing.T) {
	assert.Empty(t, ModuleTargets(t.TempDir(), "absent"))
}

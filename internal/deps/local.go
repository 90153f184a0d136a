// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package deps reads the local-dependency table from pyproject.toml
// and drives dependency-order traversal for recursive minification.
// Implements: prd009-local-deps R1 (table), R2 (traversal),
//
//	R3 (module targets).
package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/petar-djukic/pytrim/pkg/types"
)

// PackageConfig is what pytrim needs from a pyproject.toml: the
// project name plus the locally-vendored dependencies to minify first.
type PackageConfig struct {
	Name string
	// LocalDependencies maps distribution names to paths relative to
	// the project root.
	LocalDependencies map[string]string
}

// pyproject mirrors the TOML tables read from pyproject.toml.
type pyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Pytrim struct {
			LocalDependencies map[string]string `toml:"local-dependencies"`
		} `toml:"pytrim"`
	} `toml:"tool"`
}

// LoadConfig reads dir/pyproject.toml. A missing file yields an empty
// config named after the directory.
func LoadConfig(dir string) (*PackageConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		if os.IsNotExist(err) {
			return &PackageConfig{Name: filepath.Base(dir)}, nil
		}
		return nil, fmt.Errorf("reading pyproject.toml: %w", err)
	}
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing pyproject.toml in %s: %w", dir, err)
	}
	cfg := &PackageConfig{
		Name:              doc.Project.Name,
		LocalDependencies: doc.Tool.Pytrim.LocalDependencies,
	}
	if cfg.Name == "" {
		cfg.Name = filepath.Base(dir)
	}
	return cfg, nil
}

// Traverse visits root and its local dependencies depth-first in
// dependency order: dependencies before dependents, each canonical
// path once per session.
func Traverse(root string, visit func(dir string, cfg *PackageConfig) error) error {
	visited := make(map[string]bool)
	return traverse(root, visited, visit)
}

func traverse(dir string, visited map[string]bool, visit func(string, *PackageConfig) error) error {
	canonical, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}
	if visited[canonical] {
		return nil
	}
	visited[canonical] = true

	cfg, err := LoadConfig(canonical)
	if err != nil {
		return err
	}

	// Deterministic dependency order.
	names := make([]string, 0, len(cfg.LocalDependencies))
	for name := range cfg.LocalDependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		depDir := filepath.Join(canonical, filepath.FromSlash(cfg.LocalDependencies[name]))
		if _, err := os.Stat(depDir); err != nil {
			return fmt.Errorf("local dependency %q: %w", name, err)
		}
		if err := traverse(depDir, visited, visit); err != nil {
			return err
		}
	}
	return visit(canonical, cfg)
}

// ModuleTargets locates the importable source of a package: src-layout
// and flat-layout directories plus single-module files, trying the
// distribution name's module-name candidates.
func ModuleTargets(dir, packageName string) []string {
	var targets []string
	for _, candidate := range moduleNameCandidates(packageName) {
		for _, base := range []string{filepath.Join(dir, "src"), dir} {
			pkgDir := filepath.Join(base, candidate)
			if info, err := os.Stat(pkgDir); err == nil && info.IsDir() {
				targets = append(targets, pkgDir)
				continue
			}
			single := filepath.Join(base, candidate+".py")
			if _, err := os.Stat(single); err == nil {
				targets = append(targets, single)
			}
		}
	}
	return dedupe(targets)
}

// moduleNameCandidates maps a distribution name to likely module
// spellings: as-is, hyphens to underscores, and the canonical form.
func moduleNameCandidates(name string) []string {
	return dedupe([]string{
		name,
		strings.ReplaceAll(name, "-", "_"),
		strings.ReplaceAll(types.CanonicalizeName(name), "-", "_"),
	})
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

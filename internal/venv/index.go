// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package venv indexes the installed distributions of a Python virtual
// environment and maps top-level module names to their providers.
// Implements: prd006-venv-slim R1 (site-packages discovery),
//
//	R2 (dist-info parsing), R3 (module resolution).
package venv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/petar-djukic/pytrim/pkg/types"
)

// Index maps top-level modules to providing distributions. Namespace
// packages may have several providers.
type Index struct {
	EnvRoot      string
	SitePackages string
	// ByModule maps a top-level module name to its providers.
	ByModule map[string][]*types.Distribution
	// ByName maps canonical distribution names to records.
	ByName map[string]*types.Distribution
	// Warnings collects non-fatal scan problems: unreadable metadata,
	// module conflicts.
	Warnings []string
}

// Providers returns the distributions providing module, or nil.
func (ix *Index) Providers(module string) []*types.Distribution {
	return ix.ByModule[module]
}

// Scan builds a distribution index for the environment at envRoot.
func Scan(envRoot string) (*Index, error) {
	site, err := FindSitePackages(envRoot)
	if err != nil {
		return nil, err
	}
	ix := &Index{
		EnvRoot:      envRoot,
		SitePackages: site,
		ByModule:     make(map[string][]*types.Distribution),
		ByName:       make(map[string]*types.Distribution),
	}

	entries, err := os.ReadDir(site)
	if err != nil {
		return nil, fmt.Errorf("reading site-packages: %w", err)
	}

	claimed := make(map[string]bool)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dist-info") {
			continue
		}
		dist := ix.scanDistInfo(site, entry.Name())
		if dist == nil {
			continue
		}
		ix.register(dist)
		for _, mod := range dist.TopLevelModules {
			claimed[mod] = true
		}
	}

	// Top-level packages with no dist-info: editable installs and
	// plain namespace providers.
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasSuffix(name, ".dist-info") ||
			strings.HasSuffix(name, ".data") || name == "__pycache__" ||
			strings.HasPrefix(name, ".") {
			continue
		}
		if claimed[name] || !hasInitFile(filepath.Join(site, name)) {
			continue
		}
		dist := &types.Distribution{
			Name:            name,
			CanonicalName:   types.CanonicalizeName(name),
			RootPath:        site,
			TopLevelModules: []string{name},
		}
		ix.register(dist)
	}

	ix.detectConflicts()
	return ix, nil
}

// FindSitePackages locates the platform-appropriate site-packages
// directory under envRoot.
func FindSitePackages(envRoot string) (string, error) {
	if info, err := os.Stat(envRoot); err != nil || !info.IsDir() {
		return "", fmt.Errorf("virtual environment not found at %s", envRoot)
	}

	// POSIX layout: lib/pythonX.Y/site-packages.
	libDir := filepath.Join(envRoot, "lib")
	if entries, err := os.ReadDir(libDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() && strings.HasPrefix(entry.Name(), "python") {
				site := filepath.Join(libDir, entry.Name(), "site-packages")
				if dirExists(site) {
					return site, nil
				}
			}
		}
		if site := filepath.Join(libDir, "site-packages"); dirExists(site) {
			return site, nil
		}
	}

	// Windows layout.
	if site := filepath.Join(envRoot, "Lib", "site-packages"); dirExists(site) {
		return site, nil
	}

	// Bare tree: envRoot is already a site-packages-style directory.
	if site := filepath.Join(envRoot, "site-packages"); dirExists(site) {
		return site, nil
	}

	return "", fmt.Errorf("no site-packages directory under %s", envRoot)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func hasInitFile(dir string) bool {
	for _, init := range []string{"__init__.py", "__init__.pyi"} {
		if _, err := os.Stat(filepath.Join(dir, init)); err == nil {
			return true
		}
	}
	return false
}

// scanDistInfo parses one *.dist-info directory into a distribution
// record. Unreadable components downgrade to warnings.
func (ix *Index) scanDistInfo(site, infoDir string) *types.Distribution {
	full := filepath.Join(site, infoDir)
	dist := &types.Distribution{
		RootPath:     site,
		MetadataPath: infoDir,
	}

	name, version, err := parseMetadata(filepath.Join(full, "METADATA"))
	if err != nil {
		ix.warnf("%s: %v", infoDir, err)
		name = strings.SplitN(strings.TrimSuffix(infoDir, ".dist-info"), "-", 2)[0]
	}
	dist.Name = name
	dist.CanonicalName = types.CanonicalizeName(name)
	dist.Version = version

	records, err := parseRecord(filepath.Join(full, "RECORD"))
	if err != nil {
		ix.warnf("%s: %v", infoDir, err)
	}
	dist.RecordFiles = records

	topLevels, err := parseTopLevel(filepath.Join(full, "top_level.txt"))
	if err != nil {
		ix.warnf("%s: %v", infoDir, err)
	}
	if len(topLevels) == 0 {
		topLevels = deriveTopLevels(site, records)
	}
	sort.Strings(topLevels)
	dist.TopLevelModules = topLevels
	return dist
}

func (ix *Index) register(dist *types.Distribution) {
	ix.ByName[dist.CanonicalName] = dist
	for _, mod := range dist.TopLevelModules {
		ix.ByModule[mod] = append(ix.ByModule[mod], dist)
	}
}

// detectConflicts warns when two distributions claim one top-level
// module and neither looks like a namespace-package provider. Both are
// kept either way.
func (ix *Index) detectConflicts() {
	modules := make([]string, 0, len(ix.ByModule))
	for mod := range ix.ByModule {
		modules = append(modules, mod)
	}
	sort.Strings(modules)
	for _, mod := range modules {
		providers := ix.ByModule[mod]
		if len(providers) < 2 || ix.isNamespaceModule(mod) {
			continue
		}
		names := make([]string, len(providers))
		for i, p := range providers {
			names[i] = p.CanonicalName
		}
		ix.warnf("module %s provided by multiple distributions: %s",
			mod, strings.Join(names, ", "))
	}
}

// isNamespaceModule treats a module directory without __init__.py as
// an implicit namespace package.
func (ix *Index) isNamespaceModule(mod string) bool {
	dir := filepath.Join(ix.SitePackages, mod)
	return dirExists(dir) && !hasInitFile(dir)
}

func (ix *Index) warnf(format string, args ...any) {
	ix.Warnings = append(ix.Warnings, fmt.Sprintf(format, args...))
}

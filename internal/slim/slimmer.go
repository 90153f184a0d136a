// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package slim materializes a reduced copy of a virtual environment
// containing only the distributions a used-module set resolves to.
// Implements: prd006-venv-slim R4 (kept set), R5 (copy).
package slim

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/petar-djukic/pytrim/internal/venv"
	"github.com/petar-djukic/pytrim/pkg/types"
)

// Report summarizes one slim run.
type Report struct {
	OutRoot     string   `json:"out_root"`
	Kept        []string `json:"kept"`       // Canonical distribution names, sorted
	Unresolved  []string `json:"unresolved"` // Used modules with no provider (stdlib or typos)
	FilesCopied int      `json:"files_copied"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Slim copies the providers of every resolvable used module into
// outRoot, mirroring the environment's site-packages layout plus the
// venv basics. Modules with no provider are recorded, not fatal: the
// set routinely contains standard-library names.
func Slim(ix *venv.Index, usedModules []string, outRoot string) (*Report, error) {
	report := &Report{OutRoot: outRoot, Warnings: ix.Warnings}

	used := make([]string, len(usedModules))
	copy(used, usedModules)
	sort.Strings(used)

	keep := make(map[string]*types.Distribution)
	for _, module := range used {
		providers := ix.Providers(module)
		if len(providers) == 0 {
			report.Unresolved = append(report.Unresolved, module)
			continue
		}
		for _, dist := range providers {
			keep[dist.CanonicalName] = dist
		}
	}

	outSite, err := mirrorSitePackagesPath(ix, outRoot)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outSite, 0o755); err != nil {
		return nil, fmt.Errorf("creating output site-packages: %w", err)
	}

	names := make([]string, 0, len(keep))
	for name := range keep {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dist := keep[name]
		copied, err := copyDistribution(ix.SitePackages, outSite, dist)
		if err != nil {
			return nil, err
		}
		report.FilesCopied += copied
		report.Kept = append(report.Kept, name)
	}

	copied, err := copyVenvBasics(ix.EnvRoot, outRoot)
	if err != nil {
		return nil, err
	}
	report.FilesCopied += copied
	return report, nil
}

// mirrorSitePackagesPath reproduces the source env's site-packages
// location under outRoot.
func mirrorSitePackagesPath(ix *venv.Index, outRoot string) (string, error) {
	rel, err := filepath.Rel(ix.EnvRoot, ix.SitePackages)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("site-packages %s is not under env root %s",
			ix.SitePackages, ix.EnvRoot)
	}
	return filepath.Join(outRoot, rel), nil
}

// copyDistribution copies every packaged file of one distribution.
// With a RECORD the listed paths are authoritative; without one the
// provider's module trees and dist-info directory are copied whole.
func copyDistribution(srcSite, outSite string, dist *types.Distribution) (int, error) {
	if len(dist.RecordFiles) > 0 {
		copied := 0
		for _, rec := range dist.RecordFiles {
			rec = filepath.ToSlash(rec)
			if strings.HasPrefix(rec, "..") {
				continue // outside site-packages (scripts); not mirrored
			}
			src := filepath.Join(srcSite, filepath.FromSlash(rec))
			if _, err := os.Stat(src); err != nil {
				continue // listed but absent; never invent files
			}
			dst := filepath.Join(outSite, filepath.FromSlash(rec))
			if err := copyFile(src, dst); err != nil {
				return copied, err
			}
			copied++
		}
		return copied, nil
	}

	copied := 0
	roots := make([]string, 0, len(dist.TopLevelModules)+1)
	roots = append(roots, dist.TopLevelModules...)
	if dist.MetadataPath != "" {
		roots = append(roots, dist.MetadataPath)
	}
	for _, root := range roots {
		src := filepath.Join(srcSite, root)
		info, err := os.Stat(src)
		if err != nil {
			// Single-module distribution: try mod.py.
			src = filepath.Join(srcSite, root+".py")
			if _, err := os.Stat(src); err != nil {
				continue
			}
			if err := copyFile(src, filepath.Join(outSite, root+".py")); err != nil {
				return copied, err
			}
			copied++
			continue
		}
		if info.IsDir() {
			n, err := copyTree(src, filepath.Join(outSite, root))
			copied += n
			if err != nil {
				return copied, err
			}
			continue
		}
		if err := copyFile(src, filepath.Join(outSite, root)); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

// copyVenvBasics carries over the interpreter scaffolding so the slim
// env stays activatable.
func copyVenvBasics(envRoot, outRoot string) (int, error) {
	copied := 0
	for _, name := range []string{"bin", "Scripts", "pyvenv.cfg"} {
		src := filepath.Join(envRoot, name)
		info, err := os.Stat(src)
		if err != nil {
			continue
		}
		if info.IsDir() {
			n, err := copyTree(src, filepath.Join(outRoot, name))
			copied += n
			if err != nil {
				return copied, err
			}
			continue
		}
		if err := copyFile(src, filepath.Join(outRoot, name)); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

func copyTree(src, dst string) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

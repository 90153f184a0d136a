// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/petar-djukic/pytrim/internal/deps"
	"github.com/petar-djukic/pytrim/internal/walker"
	"github.com/petar-djukic/pytrim/pkg/types"
)

// newMinifyTreeCmd creates the "minify-tree" command: recursive
// in-place minification of a project and its local dependencies in
// dependency order, driven by the pyproject local-dependencies table.
func newMinifyTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minify-tree <dir>",
		Short: "Minify a project and its local dependencies in place",
		Long:  "Minify-tree reads [tool.pytrim.local-dependencies] from pyproject.toml and minifies each dependency before its dependents. Every project root is visited once per session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := loadRunOptions()
			policy, err := loadPolicy(cmd)
			if err != nil {
				return err
			}

			total := &types.DirStats{Root: args[0]}
			err = deps.Traverse(args[0], func(dir string, cfg *deps.PackageConfig) error {
				targets := deps.ModuleTargets(dir, cfg.Name)
				if len(targets) == 0 {
					opts.logf("%s: no module targets for %s", dir, cfg.Name)
					return nil
				}
				for _, target := range targets {
					info, err := os.Stat(target)
					if err != nil {
						continue
					}
					if !info.IsDir() {
						fs := minifyDirWorker(cmd.Context(), forcedInPlace(opts),
							filepath.Dir(target), "", filepath.Base(target))
						total.Add(fs)
						continue
					}
					files, err := walker.Collect(target, policy)
					if err != nil {
						return walkError(err)
					}
					stats := walker.Each(cmd.Context(), target, files, policy.Jobs, func(rel string) types.FileStats {
						return minifyDirWorker(cmd.Context(), forcedInPlace(opts), target, "", rel)
					})
					for _, fs := range stats.Files {
						total.Add(fs)
					}
				}
				opts.logf("minified package %s", cfg.Name)
				return nil
			})
			if err != nil {
				return exitWith(exitError, err)
			}
			return finishDirRun(opts, total)
		},
	}
	addDirFlags(cmd)
	return cmd
}

// forcedInPlace makes the tree verb write in place regardless of the
// shared flag, honoring dry-run.
func forcedInPlace(opts runOptions) runOptions {
	opts.InPlace = true
	return opts
}

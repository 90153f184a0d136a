// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petar-djukic/pytrim/internal/imports"
	"github.com/petar-djukic/pytrim/internal/slim"
	"github.com/petar-djukic/pytrim/internal/venv"
	"github.com/petar-djukic/pytrim/internal/walker"
)

// newSlimCmd creates the "slim" command.
func newSlimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slim <python-dir> <venv-dir>",
		Short: "Copy only the distributions a code tree imports",
		Long:  "Slim collects the top-level imports of <python-dir>, resolves them against <venv-dir>'s installed distributions, and materializes a reduced copy. Dynamically imported modules are not tracked; the input set must cover them.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := loadRunOptions()
			codeDir, venvDir := args[0], args[1]

			outRoot, _ := cmd.Flags().GetString("out")
			if outRoot == "" {
				outRoot = strings.TrimRight(venvDir, string(filepath.Separator)) + "-slim"
			}
			if err := walker.CheckOutputPath(venvDir, outRoot); err != nil {
				return exitWith(exitUsage, err)
			}
			if err := walker.CheckOutputPath(codeDir, outRoot); err != nil {
				return exitWith(exitUsage, err)
			}
			if !opts.DryRun {
				if err := probeWritable(outRoot); err != nil {
					return err
				}
			}

			policy, err := loadPolicy(cmd)
			if err != nil {
				return err
			}
			files, err := walker.Collect(codeDir, policy)
			if err != nil {
				return walkError(err)
			}

			merged := imports.NewSet()
			for _, rel := range files {
				raw, err := os.ReadFile(filepath.Join(codeDir, filepath.FromSlash(rel)))
				if err != nil {
					opts.debugf("%s: %v", rel, err)
					continue
				}
				set, err := collectImportsRaw(cmd.Context(), raw)
				if err != nil {
					opts.debugf("%s: %v", rel, err)
					continue
				}
				merged.Merge(set)
			}
			used := merged.SlimInput()
			opts.logf("found %d unique imports in %d files", len(used), len(files))

			ix, err := venv.Scan(venvDir)
			if err != nil {
				return exitWith(exitError, err)
			}
			for _, warning := range ix.Warnings {
				opts.logf("warning: %s", warning)
			}

			if opts.DryRun {
				opts.logf("dry run: would slim into %s", outRoot)
				return nil
			}
			report, err := slim.Slim(ix, used, outRoot)
			if err != nil {
				return exitWith(exitError, err)
			}
			opts.logf("kept %d distribution(s), copied %d file(s) into %s",
				len(report.Kept), report.FilesCopied, outRoot)
			for _, module := range report.Unresolved {
				opts.debugf("unresolved module %s (stdlib or missing)", module)
			}
			if err := opts.emitStats(report); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output venv path; default <venv>-slim")
	addDirFlags(cmd)
	return cmd
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/petar-djukic/pytrim/internal/callgraph"
	"github.com/petar-djukic/pytrim/internal/imports"
	"github.com/petar-djukic/pytrim/internal/pysrc"
	"github.com/petar-djukic/pytrim/internal/venv"
	"github.com/petar-djukic/pytrim/internal/walker"
	"github.com/petar-djukic/pytrim/pkg/types"
)

// analyzeReport is the JSON shape of "analyze" over a code tree.
type analyzeReport struct {
	Root            string               `json:"root"`
	Imports         []string             `json:"imports"`
	RelativeImports bool                 `json:"relative_imports"`
	Files           int                  `json:"files"`
	Errors          []string             `json:"errors,omitempty"`
	DeadCode        *callgraph.Report    `json:"dead_code,omitempty"`
	Distributions   []types.Distribution `json:"distributions,omitempty"`
	Warnings        []string             `json:"warnings,omitempty"`
}

// newAnalyzeCmd creates the "analyze" command. Pointed at a virtual
// environment it lists the distribution index; pointed at a code tree
// it reports imports and the advisory dead-code set.
func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze a Python tree or virtual environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := loadRunOptions()
			root := args[0]

			if _, err := venv.FindSitePackages(root); err == nil {
				return analyzeVenv(opts, root)
			}
			return analyzeCode(cmd.Context(), cmd, opts, root)
		},
	}
	addDirFlags(cmd)
	return cmd
}

func analyzeVenv(opts runOptions, root string) error {
	ix, err := venv.Scan(root)
	if err != nil {
		return exitWith(exitError, err)
	}
	report := analyzeReport{Root: root, Warnings: ix.Warnings}
	names := make([]string, 0, len(ix.ByName))
	for name := range ix.ByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		report.Distributions = append(report.Distributions, *ix.ByName[name])
	}
	return printReport(opts, &report)
}

func analyzeCode(ctx context.Context, cmd *cobra.Command, opts runOptions, root string) error {
	policy, err := loadPolicy(cmd)
	if err != nil {
		return err
	}
	files, err := walker.Collect(root, policy)
	if err != nil {
		return walkError(err)
	}

	merged := imports.NewSet()
	graph := callgraph.New()
	report := analyzeReport{Root: root, Files: len(files)}

	for _, rel := range files {
		raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		set, err := collectImportsRaw(ctx, raw)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		merged.Merge(set)
		if err := graph.AddFile(ctx, rel, raw); err != nil {
			opts.debugf("callgraph %s: %v", rel, err)
		}
	}

	report.Imports = merged.SlimInput()
	report.RelativeImports = merged.Contains(imports.RelativeSentinel)
	report.DeadCode = graph.Resolve()
	return printReport(opts, &report)
}

// collectImportsRaw decodes then collects, so encoding declarations do
// not disturb the emitted set.
func collectImportsRaw(ctx context.Context, raw []byte) (*imports.Set, error) {
	text, _, err := pysrc.Decode(raw)
	if err != nil {
		return nil, err
	}
	return imports.CollectTopLevel(ctx, text)
}

func printReport(opts runOptions, report *analyzeReport) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return exitWith(exitError, err)
	}
	if opts.OutputJSON != "" {
		if err := os.WriteFile(opts.OutputJSON, append(out, '\n'), 0o644); err != nil {
			return exitWith(exitIO, err)
		}
		return nil
	}
	fmt.Println(string(out))
	return nil
}

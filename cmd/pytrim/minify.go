// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petar-djukic/pytrim/internal/planfile"
	"github.com/petar-djukic/pytrim/internal/rewrite"
	"github.com/petar-djukic/pytrim/pkg/types"
)

// newMinifyCmd creates the "minify" command for a single file.
func newMinifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "minify [file]",
		Short: "Minify one Python file",
		Long:  "Minify plans and applies function-local renames and docstring stripping for a single file. Output goes to stdout unless --in-place (with a file) or --dry-run is set; with --diff it goes to stdout only when --stdout is also set.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := loadRunOptions()
			raw, path, err := readInput(opts, args)
			if err != nil {
				return err
			}
			moduleName := "stdin"
			if path != "" {
				moduleName = moduleNameFromRel(filepath.Base(path))
			}

			result, err := minifyBytes(cmd.Context(), raw, moduleName)
			if err != nil {
				return failSingleFile(opts, path, raw, err)
			}
			return finishSingleFile(opts, path, raw, result)
		},
	}
}

// newMinifyPlanCmd creates the "minify-plan" command: plan only,
// emitted as JSON.
func newMinifyPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "minify-plan [file]",
		Short: "Compute a rename plan for one file as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := loadRunOptions()
			raw, path, err := readInput(opts, args)
			if err != nil {
				return err
			}
			moduleName := "stdin"
			if path != "" {
				moduleName = moduleNameFromRel(filepath.Base(path))
			}

			plan, err := planRaw(cmd.Context(), raw, moduleName)
			if err != nil {
				return exitWith(exitError, err)
			}
			out, err := planfile.MarshalPlan(plan)
			if err != nil {
				return exitWith(exitError, err)
			}
			if opts.OutputJSON != "" {
				if err := os.WriteFile(opts.OutputJSON, out, 0o644); err != nil {
					return exitWith(exitIO, err)
				}
				return nil
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
}

// newApplyPlanCmd creates the "apply-plan" command: rewrite a file
// from a previously computed plan.
func newApplyPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-plan <file> <plan.json>",
		Short: "Apply a stored rename plan to a file",
		Long:  "Apply-plan validates the plan's format version and byte ranges against the file's current content, then rewrites it. A moved or edited function aborts the file with a plan-drift error.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := loadRunOptions()
			path, planPath := args[0], args[1]

			raw, err := os.ReadFile(path)
			if err != nil {
				return exitWith(exitError, fmt.Errorf("reading %s: %w", path, err))
			}
			planData, err := os.ReadFile(planPath)
			if err != nil {
				return exitWith(exitError, fmt.Errorf("reading %s: %w", planPath, err))
			}
			plan, err := planfile.UnmarshalPlan(planData)
			if err != nil {
				return planLoadError(err)
			}

			result, err := rewrite.ApplyPlan(cmd.Context(), raw, plan)
			if err != nil {
				return failSingleFile(opts, path, raw, err)
			}
			return finishSingleFile(opts, path, raw, result)
		},
	}
}

// readInput reads the file argument or stdin per --stdin.
func readInput(opts runOptions, args []string) (raw []byte, path string, err error) {
	if opts.Stdin || len(args) == 0 {
		if len(args) > 0 {
			return nil, "", usageErrf("--stdin conflicts with a file argument")
		}
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", exitWith(exitError, fmt.Errorf("reading stdin: %w", err))
		}
		return raw, "", nil
	}
	path = args[0]
	raw, err = os.ReadFile(path)
	if err != nil {
		return nil, "", exitWith(exitError, fmt.Errorf("reading %s: %w", path, err))
	}
	return raw, path, nil
}

// finishSingleFile writes output, prints diffs/stats, and applies the
// fail-on flags for one-file verbs.
func finishSingleFile(opts runOptions, path string, raw []byte, result *rewrite.Result) error {
	outcome := classifyOutcome(result)
	opts.printDiff(displayPath(path), raw, result.Output)

	if !opts.DryRun {
		switch {
		case opts.InPlace && path != "":
			if result.Changed {
				if err := writeInPlace(path, result.Output, opts.BackupExt); err != nil {
					return exitWith(exitError, err)
				}
			}
		default:
			if !opts.Diff || opts.Stdout {
				if _, err := os.Stdout.Write(result.Output); err != nil {
					return exitWith(exitError, err)
				}
			}
		}
	}

	stats := types.FileStats{
		Path:          displayPath(path),
		Outcome:       outcome,
		BytesIn:       len(raw),
		BytesOut:      len(result.Output),
		Renames:       result.Renames,
		Docstrings:    result.Docstrings,
		BailoutsInner: result.Bailouts,
	}
	if err := opts.emitStats(stats); err != nil {
		return err
	}

	agg := &types.DirStats{}
	agg.Add(stats)
	return opts.checkFailFlags(agg)
}

// failSingleFile copies the input through unchanged when a rewrite
// verb hits a per-file error, then exits nonzero.
func failSingleFile(opts runOptions, path string, raw []byte, cause error) error {
	if !opts.DryRun && !opts.InPlace {
		os.Stdout.Write(raw)
	}
	stats := types.FileStats{
		Path:    displayPath(path),
		Outcome: types.OutcomeError,
		BytesIn: len(raw),
		Error:   cause.Error(),
	}
	if err := opts.emitStats(stats); err != nil {
		return err
	}
	if opts.FailOnError {
		return exitWith(exitFailOn, cause)
	}
	return exitWith(exitError, cause)
}

func displayPath(path string) string {
	if path == "" {
		return "<stdin>"
	}
	return filepath.ToSlash(strings.TrimPrefix(path, "./"))
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/petar-djukic/pytrim/internal/planfile"
	"github.com/petar-djukic/pytrim/internal/rewrite"
	"github.com/petar-djukic/pytrim/internal/walker"
	"github.com/petar-djukic/pytrim/pkg/types"
)

// stdoutMu serializes worker writes to the terminal.
var stdoutMu sync.Mutex

// addDirFlags registers the directory-verb flag set.
func addDirFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArray("include", nil, "Include glob (repeatable); default **/*.py")
	f.StringArray("exclude", nil, "Exclude glob (repeatable); exclude wins over include")
	f.String("include-file", "", "Newline-delimited include globs (# comments)")
	f.String("exclude-file", "", "Newline-delimited exclude globs (# comments)")
	f.Int("max-depth", 0, "Maximum walk depth; the root is depth 1")
	f.Bool("include-hidden", false, "Descend into dot-prefixed entries")
	f.Bool("follow-symlinks", false, "Follow symbolic links (with cycle detection)")
	f.Bool("glob-case-insensitive", false, "Match globs case-insensitively")
	f.Bool("respect-gitignore", false, "Apply .gitignore rules before explicit globs")
	f.Int("jobs", 0, "Worker count; 0 means CPU count")
	f.String("out-dir", "", "Write results under PATH instead of in place")
}

// loadPolicy builds a walker policy from the directory flags.
func loadPolicy(cmd *cobra.Command) (walker.Policy, error) {
	f := cmd.Flags()
	include, _ := f.GetStringArray("include")
	exclude, _ := f.GetStringArray("exclude")

	if path, _ := f.GetString("include-file"); path != "" {
		extra, err := readPatternFile(path)
		if err != nil {
			return walker.Policy{}, usageErrf("reading include file: %v", err)
		}
		include = append(include, extra...)
	}
	if path, _ := f.GetString("exclude-file"); path != "" {
		extra, err := readPatternFile(path)
		if err != nil {
			return walker.Policy{}, usageErrf("reading exclude file: %v", err)
		}
		exclude = append(exclude, extra...)
	}
	if len(include) == 0 {
		include = []string{"**/*.py"}
	}

	maxDepth, _ := f.GetInt("max-depth")
	hidden, _ := f.GetBool("include-hidden")
	symlinks, _ := f.GetBool("follow-symlinks")
	caseless, _ := f.GetBool("glob-case-insensitive")
	gitignore, _ := f.GetBool("respect-gitignore")
	jobs, _ := f.GetInt("jobs")

	return walker.Policy{
		Include:          include,
		Exclude:          exclude,
		MaxDepth:         maxDepth,
		IncludeHidden:    hidden,
		FollowSymlinks:   symlinks,
		CaseInsensitive:  caseless,
		RespectGitignore: gitignore,
		Jobs:             jobs,
	}, nil
}

// readPatternFile parses a newline-delimited glob list; blank lines
// and # comments are skipped.
func readPatternFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

// prepareDirRun validates the destination arrangement shared by the
// rewriting dir verbs.
func prepareDirRun(opts runOptions, root, outDir string) error {
	if outDir == "" && !opts.InPlace && !opts.DryRun {
		return usageErrf("directory verbs need --out-dir, --in-place, or --dry-run")
	}
	if outDir != "" {
		if err := walker.CheckOutputPath(root, outDir); err != nil {
			return exitWith(exitUsage, err)
		}
		if !opts.DryRun {
			if err := probeWritable(outDir); err != nil {
				return err
			}
		}
	}
	return nil
}

// newMinifyDirCmd creates the "minify-dir" command.
func newMinifyDirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minify-dir <dir>",
		Short: "Minify every matching file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := loadRunOptions()
			policy, err := loadPolicy(cmd)
			if err != nil {
				return err
			}
			root := args[0]
			outDir, _ := cmd.Flags().GetString("out-dir")
			if err := prepareDirRun(opts, root, outDir); err != nil {
				return err
			}

			files, err := walker.Collect(root, policy)
			if err != nil {
				return walkError(err)
			}
			stats := walker.Each(cmd.Context(), root, files, policy.Jobs, func(rel string) types.FileStats {
				return minifyDirWorker(cmd.Context(), opts, root, outDir, rel)
			})
			return finishDirRun(opts, stats)
		},
	}
	addDirFlags(cmd)
	return cmd
}

// minifyDirWorker processes one file of a minify-dir run. Bailed and
// erroring files are copied through unchanged when writing to an
// output directory.
func minifyDirWorker(ctx context.Context, opts runOptions, root, outDir, rel string) types.FileStats {
	full := filepath.Join(root, filepath.FromSlash(rel))
	raw, err := os.ReadFile(full)
	if err != nil {
		return errorStats(rel, 0, err)
	}

	result, err := minifyBytes(ctx, raw, moduleNameFromRel(rel))
	if err != nil {
		opts.debugf("%s: %v", rel, err)
		if writeErr := copyThrough(opts, outDir, rel, raw); writeErr != nil {
			err = writeErr
		}
		return errorStats(rel, len(raw), err)
	}

	if result.Changed {
		stdoutMu.Lock()
		opts.printDiff(rel, raw, result.Output)
		stdoutMu.Unlock()
	}

	if !opts.DryRun {
		switch {
		case outDir != "":
			if err := writeUnder(outDir, rel, result.Output); err != nil {
				return errorStats(rel, len(raw), err)
			}
		case opts.InPlace && result.Changed:
			if err := writeInPlace(full, result.Output, opts.BackupExt); err != nil {
				return errorStats(rel, len(raw), err)
			}
		}
	}

	return types.FileStats{
		Path:          rel,
		Outcome:       classifyOutcome(result),
		BytesIn:       len(raw),
		BytesOut:      len(result.Output),
		Renames:       result.Renames,
		Docstrings:    result.Docstrings,
		BailoutsInner: result.Bailouts,
	}
}

// newMinifyPlanDirCmd creates the "minify-plan-dir" command: a plan
// bundle for the whole tree, sorted by path.
func newMinifyPlanDirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minify-plan-dir <dir>",
		Short: "Compute a plan bundle for a directory as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := loadRunOptions()
			policy, err := loadPolicy(cmd)
			if err != nil {
				return err
			}
			root := args[0]
			files, err := walker.Collect(root, policy)
			if err != nil {
				return walkError(err)
			}

			var mu sync.Mutex
			plans := make(map[string]*types.ModulePlan)
			stats := walker.Each(cmd.Context(), root, files, policy.Jobs, func(rel string) types.FileStats {
				raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
				if err != nil {
					return errorStats(rel, 0, err)
				}
				plan, err := planRaw(cmd.Context(), raw, moduleNameFromRel(rel))
				if err != nil {
					opts.debugf("%s: %v", rel, err)
					return errorStats(rel, len(raw), err)
				}
				mu.Lock()
				plans[rel] = plan
				mu.Unlock()
				return types.FileStats{Path: rel, Outcome: types.OutcomeUnchanged, BytesIn: len(raw)}
			})

			bundle := &types.PlanBundle{FormatVersion: types.PlanFormatVersion}
			paths := make([]string, 0, len(plans))
			for rel := range plans {
				paths = append(paths, rel)
			}
			sort.Strings(paths)
			for _, rel := range paths {
				bundle.Entries = append(bundle.Entries, types.BundleEntry{Path: rel, Plan: *plans[rel]})
			}

			out, err := planfile.MarshalBundle(bundle)
			if err != nil {
				return exitWith(exitError, err)
			}
			if opts.OutputJSON != "" {
				if err := os.WriteFile(opts.OutputJSON, out, 0o644); err != nil {
					return exitWith(exitIO, err)
				}
			} else {
				os.Stdout.Write(out)
			}
			return opts.checkFailFlags(stats)
		},
	}
	addDirFlags(cmd)
	return cmd
}

// newApplyPlanDirCmd creates the "apply-plan-dir" command.
func newApplyPlanDirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply-plan-dir <dir> <bundle.json>",
		Short: "Apply a plan bundle to a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := loadRunOptions()
			policy, err := loadPolicy(cmd)
			if err != nil {
				return err
			}
			root, bundlePath := args[0], args[1]
			outDir, _ := cmd.Flags().GetString("out-dir")
			if err := prepareDirRun(opts, root, outDir); err != nil {
				return err
			}

			data, err := os.ReadFile(bundlePath)
			if err != nil {
				return exitWith(exitError, fmt.Errorf("reading %s: %w", bundlePath, err))
			}
			bundle, err := planfile.UnmarshalBundle(data)
			if err != nil {
				return planLoadError(err)
			}

			entries := make(map[string]*types.ModulePlan, len(bundle.Entries))
			paths := make([]string, 0, len(bundle.Entries))
			for i := range bundle.Entries {
				entry := &bundle.Entries[i]
				entries[entry.Path] = &entry.Plan
				paths = append(paths, entry.Path)
			}
			sort.Strings(paths)

			stats := walker.Each(cmd.Context(), root, paths, policy.Jobs, func(rel string) types.FileStats {
				return applyPlanWorker(cmd.Context(), opts, root, outDir, rel, entries[rel])
			})
			return finishDirRun(opts, stats)
		},
	}
	addDirFlags(cmd)
	return cmd
}

func applyPlanWorker(ctx context.Context, opts runOptions, root, outDir, rel string, plan *types.ModulePlan) types.FileStats {
	full := filepath.Join(root, filepath.FromSlash(rel))
	raw, err := os.ReadFile(full)
	if err != nil {
		return errorStats(rel, 0, err)
	}
	result, err := rewrite.ApplyPlan(ctx, raw, plan)
	if err != nil {
		opts.debugf("%s: %v", rel, err)
		return errorStats(rel, len(raw), err)
	}

	if result.Changed {
		stdoutMu.Lock()
		opts.printDiff(rel, raw, result.Output)
		stdoutMu.Unlock()
	}
	if !opts.DryRun {
		switch {
		case outDir != "":
			if err := writeUnder(outDir, rel, result.Output); err != nil {
				return errorStats(rel, len(raw), err)
			}
		case opts.InPlace && result.Changed:
			if err := writeInPlace(full, result.Output, opts.BackupExt); err != nil {
				return errorStats(rel, len(raw), err)
			}
		}
	}
	return types.FileStats{
		Path:          rel,
		Outcome:       classifyOutcome(result),
		BytesIn:       len(raw),
		BytesOut:      len(result.Output),
		Renames:       result.Renames,
		Docstrings:    result.Docstrings,
		BailoutsInner: result.Bailouts,
	}
}

// copyThrough mirrors an unprocessable file into the output tree.
func copyThrough(opts runOptions, outDir, rel string, raw []byte) error {
	if opts.DryRun || outDir == "" {
		return nil
	}
	return writeUnder(outDir, rel, raw)
}

func errorStats(rel string, bytesIn int, err error) types.FileStats {
	return types.FileStats{
		Path:    rel,
		Outcome: types.OutcomeError,
		BytesIn: bytesIn,
		Error:   err.Error(),
	}
}

// finishDirRun prints the summary and applies fail-on flags.
func finishDirRun(opts runOptions, stats *types.DirStats) error {
	opts.logf("minified %d, unchanged %d, bailout %d, error %d",
		stats.Minified, stats.Unchanged, stats.Bailouts, stats.Errors)
	if err := opts.emitStats(stats); err != nil {
		return err
	}
	return opts.checkFailFlags(stats)
}

// walkError maps policy violations to exit code 2 and everything else
// to exit code 1.
func walkError(err error) error {
	var policyErr *walker.PolicyError
	if errors.As(err, &policyErr) {
		return exitWith(exitUsage, err)
	}
	return exitWith(exitError, err)
}

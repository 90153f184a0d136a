// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/petar-djukic/pytrim/internal/diffview"
	"github.com/petar-djukic/pytrim/internal/planfile"
	"github.com/petar-djukic/pytrim/internal/planner"
	"github.com/petar-djukic/pytrim/internal/pysrc"
	"github.com/petar-djukic/pytrim/internal/rewrite"
	"github.com/petar-djukic/pytrim/pkg/types"
)

// Exit codes, stable across verbs.
const (
	exitOK          = 0
	exitError       = 1 // analysis or rewrite error
	exitUsage       = 2 // invalid arguments or output-path safety violation
	exitFailOn      = 3 // a --fail-on-* flag triggered
	exitPlanVersion = 4 // plan format version too new
	exitIO          = 5 // writable-output probe failure
)

// codedError carries a process exit code out of a cobra RunE.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *codedError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &codedError{code: code, err: err}
}

func usageErrf(format string, args ...any) error {
	return exitWith(exitUsage, fmt.Errorf(format, args...))
}

// runOptions is the immutable per-run view of the shared flags.
type runOptions struct {
	InPlace       bool
	DryRun        bool
	Diff          bool
	DiffContext   int
	Stats         bool
	JSON          bool
	OutputJSON    string
	Stdin         bool
	Stdout        bool
	BackupExt     string
	Quiet         bool
	Debug         bool
	FailOnChange  bool
	FailOnBailout bool
	FailOnError   bool
}

func loadRunOptions() runOptions {
	return runOptions{
		InPlace:       viper.GetBool("in-place"),
		DryRun:        viper.GetBool("dry-run"),
		Diff:          viper.GetBool("diff"),
		DiffContext:   viper.GetInt("diff-context"),
		Stats:         viper.GetBool("stats"),
		JSON:          viper.GetBool("json"),
		OutputJSON:    viper.GetString("output-json"),
		Stdin:         viper.GetBool("stdin"),
		Stdout:        viper.GetBool("stdout"),
		BackupExt:     viper.GetString("backup-ext"),
		Quiet:         viper.GetBool("quiet"),
		Debug:         viper.GetBool("debug"),
		FailOnChange:  viper.GetBool("fail-on-change"),
		FailOnBailout: viper.GetBool("fail-on-bailout"),
		FailOnError:   viper.GetBool("fail-on-error"),
	}
}

func (o runOptions) logf(format string, args ...any) {
	if !o.Quiet {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func (o runOptions) debugf(format string, args ...any) {
	if o.Debug {
		fmt.Fprintf(os.Stderr, "debug: "+format+"\n", args...)
	}
}

// moduleNameFromRel derives a dotted module name from a relative file
// path: pkg/util/io.py -> pkg.util.io, pkg/__init__.py -> pkg.
func moduleNameFromRel(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, ".py")
	rel = strings.TrimSuffix(rel, "/__init__")
	if rel == "__init__" {
		rel = ""
	}
	name := strings.ReplaceAll(rel, "/", ".")
	if name == "" {
		return "__init__"
	}
	return name
}

// planRaw decodes raw file bytes and plans the module. Plan ranges
// come back in the file's encoded bytes.
func planRaw(ctx context.Context, raw []byte, moduleName string) (*types.ModulePlan, error) {
	buf, err := pysrc.NewBuffer(raw)
	if err != nil {
		return nil, err
	}
	return planner.PlanModule(ctx, buf, moduleName)
}

// minifyBytes runs plan-then-apply over one file's raw bytes.
func minifyBytes(ctx context.Context, raw []byte, moduleName string) (*rewrite.Result, error) {
	plan, err := planRaw(ctx, raw, moduleName)
	if err != nil {
		return nil, err
	}
	return rewrite.ApplyPlan(ctx, raw, plan)
}

// classifyOutcome maps a rewrite result to the per-file outcome.
func classifyOutcome(result *rewrite.Result) types.FileOutcome {
	switch {
	case result.Changed:
		return types.OutcomeMinified
	case result.Bailouts > 0:
		return types.OutcomeBailout
	default:
		return types.OutcomeUnchanged
	}
}

// writeInPlace writes content over path using write-then-rename, with
// an optional backup rename of the original first.
func writeInPlace(path string, content []byte, backupExt string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if backupExt != "" {
		if err := os.Rename(path, path+backupExt); err != nil {
			return fmt.Errorf("backing up %s: %w", path, err)
		}
	}
	tmp := path + ".pytrim.tmp"
	if err := os.WriteFile(tmp, content, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// writeUnder writes content at rel below outRoot, creating parents.
func writeUnder(outRoot, rel string, content []byte) error {
	dst := filepath.Join(outRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// probeWritable verifies the output root accepts writes before any
// work begins. Failures surface as exit code 5.
func probeWritable(outRoot string) error {
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return exitWith(exitIO, fmt.Errorf("output %s not writable: %w", outRoot, err))
	}
	probe := filepath.Join(outRoot, ".pytrim-probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return exitWith(exitIO, fmt.Errorf("output %s not writable: %w", outRoot, err))
	}
	os.Remove(probe)
	return nil
}

// printDiff renders a unified diff for one file if --diff is set.
func (o runOptions) printDiff(rel string, before, after []byte) {
	if !o.Diff {
		return
	}
	if out := diffview.Unified(rel, string(before), string(after), o.DiffContext); out != "" {
		fmt.Print(out)
	}
}

// emitStats writes statistics as JSON to --output-json and/or stdout.
func (o runOptions) emitStats(v any) error {
	if o.OutputJSON == "" && !o.Stats && !o.JSON {
		return nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return exitWith(exitError, fmt.Errorf("marshaling stats: %w", err))
	}
	if o.OutputJSON != "" {
		if err := os.WriteFile(o.OutputJSON, append(out, '\n'), 0o644); err != nil {
			return exitWith(exitIO, fmt.Errorf("writing %s: %w", o.OutputJSON, err))
		}
	}
	if o.Stats || o.JSON {
		fmt.Println(string(out))
	}
	return nil
}

// checkFailFlags converts aggregate counters into exit code 3 when a
// --fail-on-* flag demands it.
func (o runOptions) checkFailFlags(stats *types.DirStats) error {
	switch {
	case o.FailOnError && stats.Errors > 0:
		return exitWith(exitFailOn, fmt.Errorf("%d file(s) failed", stats.Errors))
	case o.FailOnBailout && stats.Bailouts > 0:
		return exitWith(exitFailOn, fmt.Errorf("%d file(s) bailed out", stats.Bailouts))
	case o.FailOnChange && stats.Minified > 0:
		return exitWith(exitFailOn, fmt.Errorf("%d file(s) would change", stats.Minified))
	}
	return nil
}

// planLoadError maps plan parse failures to their exit codes.
func planLoadError(err error) error {
	var version *planfile.VersionError
	if errors.As(err, &version) {
		return exitWith(exitPlanVersion, err)
	}
	return exitWith(exitError, err)
}

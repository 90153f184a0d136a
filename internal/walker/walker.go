// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package walker is the parallel directory driver: it collects files
// under glob/ignore/depth/symlink policy and fans per-file work across
// a bounded worker pool.
// Implements: prd007-directory-driver R1 (policy walk), R2 (worker
//
//	pool), R3 (output-path safety).
package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/sourcegraph/conc/pool"

	"github.com/petar-djukic/pytrim/pkg/types"
)

// Policy controls which files a walk yields. Ignore files are applied
// first; explicit include/exclude globs layer on top, and exclude
// always beats include.
type Policy struct {
	Include          []string // Doublestar globs over slash-relative paths; empty means all
	Exclude          []string
	MaxDepth         int // 0 = unlimited; the root itself is depth 1
	IncludeHidden    bool
	FollowSymlinks   bool
	CaseInsensitive  bool
	RespectGitignore bool
	Jobs             int // Worker count; <= 0 means NumCPU
}

// PolicyError reports an invalid policy before any work begins.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return "policy error: " + e.Reason
}

// Validate checks glob syntax and depth up front.
func (p *Policy) Validate() error {
	for _, glob := range append(append([]string{}, p.Include...), p.Exclude...) {
		if !doublestar.ValidatePattern(glob) {
			return &PolicyError{Reason: fmt.Sprintf("invalid glob %q", glob)}
		}
	}
	if p.MaxDepth < 0 {
		return &PolicyError{Reason: fmt.Sprintf("invalid max depth %d", p.MaxDepth)}
	}
	return nil
}

// CheckOutputPath rejects an output directory equal to or nested
// inside the input tree after resolving symlinks and "..".
func CheckOutputPath(inRoot, outRoot string) error {
	in, err := resolvePath(inRoot)
	if err != nil {
		return err
	}
	out, err := resolvePath(outRoot)
	if err != nil {
		return err
	}
	if out == in || strings.HasPrefix(out+string(filepath.Separator), in+string(filepath.Separator)) {
		return &PolicyError{Reason: fmt.Sprintf(
			"output path %s lies inside input path %s", outRoot, inRoot)}
	}
	return nil
}

// resolvePath makes a path absolute and resolves every existing
// symlink ancestor. The leaf may not exist yet.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs, nil
	}
	return filepath.Join(parent, filepath.Base(abs)), nil
}

// Collect walks root and returns the slash-relative paths of matching
// files, sorted for a deterministic job list.
func Collect(root string, policy Policy) ([]string, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, &PolicyError{Reason: fmt.Sprintf("%s is not a directory", root)}
	}

	var matcher gitignore.Matcher
	if policy.RespectGitignore {
		patterns, err := gitignore.ReadPatterns(osfs.New(absRoot), nil)
		if err == nil {
			matcher = gitignore.NewMatcher(patterns)
		}
	}

	w := &walkState{
		root:    absRoot,
		policy:  policy,
		ignore:  matcher,
		visited: map[string]bool{},
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		w.visited[resolved] = true
	}
	if err := w.walkDir(absRoot, 1); err != nil {
		return nil, err
	}
	sort.Strings(w.files)
	return w.files, nil
}

type walkState struct {
	root    string
	policy  Policy
	ignore  gitignore.Matcher
	visited map[string]bool // resolved dirs, guards symlink cycles
	files   []string
}

func (w *walkState) walkDir(dir string, depth int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil // unreadable directories are skipped, not fatal
	}
	for _, entry := range entries {
		name := entry.Name()
		if !w.policy.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		rel, err := filepath.Rel(w.root, full)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if !w.policy.FollowSymlinks {
				continue
			}
			target, err := os.Stat(full)
			if err != nil {
				continue
			}
			isDir = target.IsDir()
		}

		if w.ignore != nil && w.ignore.Match(strings.Split(rel, "/"), isDir) {
			continue
		}

		if isDir {
			if w.policy.MaxDepth > 0 && depth+1 > w.policy.MaxDepth {
				continue
			}
			if resolved, err := filepath.EvalSymlinks(full); err == nil {
				if w.visited[resolved] {
					continue
				}
				w.visited[resolved] = true
			}
			if err := w.walkDir(full, depth+1); err != nil {
				return err
			}
			continue
		}

		if w.policy.MaxDepth > 0 && depth+1 > w.policy.MaxDepth {
			continue
		}
		if w.matches(rel) {
			w.files = append(w.files, rel)
		}
	}
	return nil
}

// matches applies include then exclude globs; exclude wins.
func (w *walkState) matches(rel string) bool {
	candidate := rel
	if w.policy.CaseInsensitive {
		candidate = strings.ToLower(rel)
	}
	match := func(glob string) bool {
		if w.policy.CaseInsensitive {
			glob = strings.ToLower(glob)
		}
		ok, err := doublestar.Match(glob, candidate)
		return err == nil && ok
	}
	included := len(w.policy.Include) == 0
	for _, glob := range w.policy.Include {
		if match(glob) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, glob := range w.policy.Exclude {
		if match(glob) {
			return false
		}
	}
	return true
}

// Each runs fn over files on a bounded pool and aggregates results.
// Workers share only the policy-immutable inputs; the stats aggregate
// is guarded and touched once per completed file. The final file list
// is sorted by path so output is identical across worker counts.
func Each(ctx context.Context, root string, files []string, jobs int, fn func(rel string) types.FileStats) *types.DirStats {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	stats := &types.DirStats{Root: root}
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(jobs)
	for _, rel := range files {
		rel := rel
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			fs := fn(rel)
			mu.Lock()
			stats.Add(fs)
			mu.Unlock()
		})
	}
	p.Wait()

	sort.Slice(stats.Files, func(i, j int) bool {
		return stats.Files[i].Path < stats.Files[j].Path
	})
	return stats
}

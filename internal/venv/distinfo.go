// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package venv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// parseMetadata extracts Name and Version from a METADATA file, which
// uses RFC-822 style headers. Parsing stops at the first blank line
// (the description body follows it).
func parseMetadata(path string) (name, version string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("reading METADATA: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		if value, ok := strings.CutPrefix(line, "Name:"); ok {
			name = strings.TrimSpace(value)
		} else if value, ok := strings.CutPrefix(line, "Version:"); ok {
			version = strings.TrimSpace(value)
		}
		if name != "" && version != "" {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("reading METADATA: %w", err)
	}
	if name == "" {
		return "", "", fmt.Errorf("METADATA has no Name header")
	}
	return name, version, nil
}

// parseTopLevel reads top_level.txt: one module name per line.
func parseTopLevel(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading top_level.txt: %w", err)
	}
	var modules []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			modules = append(modules, line)
		}
	}
	return modules, nil
}

// parseRecord reads RECORD, a CSV of path,hash,size rows. Only the
// paths matter here.
func parseRecord(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading RECORD: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // some tools write short rows
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing RECORD: %w", err)
	}
	paths := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 && row[0] != "" {
			paths = append(paths, row[0])
		}
	}
	return paths, nil
}

// deriveTopLevels infers provided modules from RECORD paths when
// top_level.txt is absent: package directories containing an __init__
// file, and root-level single modules.
func deriveTopLevels(site string, records []string) []string {
	seen := make(map[string]bool)
	var modules []string
	add := func(mod string) {
		if mod != "" && !seen[mod] {
			seen[mod] = true
			modules = append(modules, mod)
		}
	}
	for _, rec := range records {
		rec = filepath.ToSlash(rec)
		if strings.HasPrefix(rec, "..") {
			continue // script or data entry outside site-packages
		}
		segment, rest, nested := strings.Cut(rec, "/")
		if strings.HasSuffix(segment, ".dist-info") || strings.HasSuffix(segment, ".data") {
			continue
		}
		if !nested {
			if mod, ok := singleModuleName(segment); ok {
				add(mod)
			}
			continue
		}
		_ = rest
		if hasInitFile(filepath.Join(site, segment)) {
			add(segment)
		}
	}
	return modules
}

// singleModuleName maps a root-level file to its module name:
// mod.py, mod.pyd, mod.so (including versioned suffixes like
// mod.cpython-312-x86_64-linux-gnu.so).
func singleModuleName(file string) (string, bool) {
	switch {
	case strings.HasSuffix(file, ".py"):
		return strings.TrimSuffix(file, ".py"), true
	case strings.HasSuffix(file, ".pyd"), strings.HasSuffix(file, ".so"):
		stem, _, _ := strings.Cut(file, ".")
		return stem, true
	}
	return "", false
}

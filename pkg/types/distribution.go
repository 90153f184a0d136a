// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import "strings"

// Distribution describes one installed distribution inside a virtual
// environment's site-packages.
type Distribution struct {
	// Name as spelled in METADATA (or derived from the directory name
	// for editable installs without dist-info).
	Name string `json:"name"`
	// CanonicalName is the PEP-503 normalized form of Name.
	CanonicalName string `json:"canonical_name"`
	Version       string `json:"version,omitempty"`
	// RootPath is the site-packages directory the distribution lives in.
	RootPath string `json:"root_path"`
	// TopLevelModules lists the importable top-level names provided.
	TopLevelModules []string `json:"top_level_modules"`
	// RecordFiles lists the packaged relative paths from RECORD.
	// Empty when no RECORD was readable.
	RecordFiles []string `json:"record_files,omitempty"`
	// MetadataPath is the dist-info directory relative to RootPath,
	// empty for editable installs.
	MetadataPath string `json:"metadata_path,omitempty"`
}

// CanonicalizeName normalizes a distribution name per PEP 503:
// lowercase with runs of hyphens, underscores, and dots folded to a
// single hyphen.
func CanonicalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pending := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte('-')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

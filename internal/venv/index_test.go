// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package venv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeVenv builds a minimal POSIX-layout virtual environment fixture.
func makeVenv(t *testing.T) (envRoot, site string) {
	t.Helper()
	envRoot = t.TempDir()
	site = filepath.Join(envRoot, "lib", "python3.12", "site-packages")
	require.NoError(t, os.MkdirAll(site, 0o755))
	return envRoot, site
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// installDist lays down a package directory plus its dist-info.
func installDist(t *testing.T, site, distName, version string, topLevel []string, files map[string]string) {
	t.Helper()
	infoDir := filepath.Join(site, distName+"-"+version+".dist-info")
	writeFile(t, filepath.Join(infoDir, "METADATA"),
		"Metadata-Version: 2.1\nName: "+distName+"\nVersion: "+version+"\n\nBody.\n")
	if topLevel != nil {
		writeFile(t, filepath.Join(infoDir, "top_level.txt"), strings.Join(topLevel, "\n")+"\n")
	}

	var record []string
	for rel, content := range files {
		writeFile(t, filepath.Join(site, filepath.FromSlash(rel)), content)
		record = append(record, rel+",sha256=deadbeef,1")
	}
	record = append(record,
		filepath.Base(infoDir)+"/METADATA,sha256=deadbeef,1",
		filepath.Base(infoDir)+"/RECORD,,")
	writeFile(t, filepath.Join(infoDir, "RECORD"), strings.Join(record, "\n")+"\n")
}

func TestFindSitePackages(t *testing.T) {
	envRoot, site := makeVenv(t)
	found, err := FindSitePackages(envRoot)
	require.NoError(t, err)
	assert.Equal(t, site, found)
}

func TestFindSitePackages_WindowsLayout(t *testing.T) {
	envRoot := t.TempDir()
	site := filepath.Join(envRoot, "Lib", "site-packages")
	require.NoError(t, os.MkdirAll(site, 0o755))
	found, err := FindSitePackages(envRoot)
	require.NoError(t, err)
	assert.Equal(t, site, found)
}

func TestFindSitePackages_Missing(t *testing.T) {
	_, err := FindSitePackages(t.TempDir())
	require.Error(t, err)
}

func TestScan_DistInfo(t *testing.T) {
	envRoot, site := makeVenv(t)
	installDist(t, site, "used_pkg", "1.0", []string{"used_pkg"}, map[string]string{
		"used_pkg/__init__.py": "def greet():\n    return 'hi'\n",
	})

	ix, err := Scan(envRoot)
	require.NoError(t, err)

	dist := ix.ByName["used-pkg"]
	require.NotNil(t, dist)
	assert.Equal(t, "used_pkg", dist.Name)
	assert.Equal(t, "1.0", dist.Version)
	assert.Equal(t, []string{"used_pkg"}, dist.TopLevelModules)
	assert.NotEmpty(t, dist.RecordFiles)

	providers := ix.Providers("used_pkg")
	require.Len(t, providers, 1)
	assert.Equal(t, "used-pkg", providers[0].CanonicalName)
}

func TestScan_TopLevelsDerivedFromRecord(t *testing.T) {
	envRoot, site := makeVenv(t)
	// No top_level.txt: derive from RECORD.
	installDist(t, site, "native_pkg", "2.0", nil, map[string]string{
		"native_pkg/__init__.py":                           "",
		"native_pkg/_impl.cpython-312-x86_64-linux-gnu.so": "\x7fELF",
		"helper_mod.py":                                    "x = 1\n",
	})

	ix, err := Scan(envRoot)
	require.NoError(t, err)
	dist := ix.ByName["native-pkg"]
	require.NotNil(t, dist)
	assert.ElementsMatch(t, []string{"native_pkg", "helper_mod"}, dist.TopLevelModules)
}

func TestScan_EditableInstallWithoutDistInfo(t *testing.T) {
	envRoot, site := makeVenv(t)
	writeFile(t, filepath.Join(site, "local_pkg", "__init__.py"), "")

	ix, err := Scan(envRoot)
	require.NoError(t, err)
	providers := ix.Providers("local_pkg")
	require.Len(t, providers, 1)
	assert.Empty(t, providers[0].MetadataPath)
	assert.Empty(t, providers[0].RecordFiles)
}

func TestScan_ConflictWarning(t *testing.T) {
	envRoot, site := makeVenv(t)
	installDist(t, site, "first", "1.0", []string{"shared"}, map[string]string{
		"shared/__init__.py": "",
	})
	installDist(t, site, "second", "1.0", []string{"shared"}, nil)

	ix, err := Scan(envRoot)
	require.NoError(t, err)
	require.Len(t, ix.Providers("shared"), 2)

	found := false
	for _, warning := range ix.Warnings {
		if strings.Contains(warning, "shared") {
			found = true
		}
	}
	assert.True(t, found, "expected a conflict warning, got %v", ix.Warnings)
}

func TestScan_NamespacePackageNoWarning(t *testing.T) {
	envRoot, site := makeVenv(t)
	// Namespace package: the module directory has no __init__.py.
	installDist(t, site, "ns_one", "1.0", []string{"ns"}, map[string]string{
		"ns/one/__init__.py": "",
	})
	installDist(t, site, "ns_two", "1.0", []string{"ns"}, map[string]string{
		"ns/two/__init__.py": "",
	})

	ix, err := Scan(envRoot)
	require.NoError(t, err)
	require.Len(t, ix.Providers("ns"), 2)
	for _, warning := range ix.Warnings {
		assert.NotContains(t, warning, "multiple distributions")
	}
}

func TestScan_UnreadableMetadataDowngrades(t *testing.T) {
	envRoot, site := makeVenv(t)
	infoDir := filepath.Join(site, "broken_pkg-1.0.dist-info")
	require.NoError(t, os.MkdirAll(infoDir, 0o755))
	// No METADATA at all; the name falls back to the directory prefix.
	writeFile(t, filepath.Join(infoDir, "top_level.txt"), "broken_pkg\n")

	ix, err := Scan(envRoot)
	require.NoError(t, err)
	assert.NotEmpty(t, ix.Warnings)
	assert.NotNil(t, ix.ByName["broken-pkg"])
}

func TestParseRecord_QuotedPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "RECORD")
	writeFile(t, path, "\"weird,name/__init__.py\",sha256=x,1\nplain/file.py,,\n")
	paths, err := parseRecord(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"weird,name/__init__.py", "plain/file.py"}, paths)
}

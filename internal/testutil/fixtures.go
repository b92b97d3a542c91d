// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// Pack describes a manifest fixture.
type Pack struct {
	UUID string
	// Version is written verbatim: []int{1, 0, 0} or "1.0.0".
	Version any
	// ModuleType is the first module's type; empty omits the field.
	ModuleType string
	Name       string
}

// ManifestJSON renders p as a Bedrock-style manifest document.
func ManifestJSON(t testing.TB, p Pack) []byte {
	t.Helper()

	header := map[string]any{}
	if p.UUID != "" {
		header["uuid"] = p.UUID
	}
	if p.Version != nil {
		header["version"] = p.Version
	}
	if p.Name != "" {
		header["name"] = p.Name
	}

	module := map[string]any{"version": []int{1, 0, 0}}
	if p.ModuleType != "" {
		module["type"] = p.ModuleType
	}

	data, err := json.MarshalIndent(map[string]any{
		"format_version": 2,
		"header":         header,
		"modules":        []any{module},
	}, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	return data
}

// WriteManifest creates dir (if needed) and writes dir/manifest.json for p.
// It returns dir.
func WriteManifest(t testing.TB, dir string, p Pack) string {
	t.Helper()
	MustWriteFile(t, filepath.Join(dir, "manifest.json"), ManifestJSON(t, p))
	return dir
}

// WriteZip writes a ZIP archive at path holding files, keyed by
// slash-separated archive path. A key ending in "/" adds a directory entry.
func WriteZip(t testing.TB, path string, files map[string][]byte) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	zw := zip.NewWriter(f)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s to zip: %v", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			t.Fatalf("failed to write %s to zip: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish zip %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", path, err)
	}
}

// WritePackZip writes a bundle containing a single pack folder named folder.
func WritePackZip(t testing.TB, path, folder string, p Pack) {
	t.Helper()
	WriteZip(t, path, map[string][]byte{
		folder + "/manifest.json":   ManifestJSON(t, p),
		folder + "/textures/a.png": []byte("png"),
	})
}

// ZipBytes returns the bytes of a ZIP archive holding files.
func ZipBytes(t testing.TB, files map[string][]byte) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested.zip")
	WriteZip(t, path, files)
	return MustReadFile(t, path)
}

// SPDX-License-Identifier: MPL-2.0

package registry_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/bedrock-tools/addonsync/internal/testutil"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
	"github.com/bedrock-tools/addonsync/pkg/registry"
)

const (
	uuidA = "11111111-1111-4111-8111-111111111111"
	uuidB = "22222222-2222-4222-8222-222222222222"
)

func newLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(buf)
}

func TestLoadRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  *string
		wantLen  int
		wantWarn bool
	}{
		{name: "missing file", content: nil, wantLen: 0},
		{name: "empty file", content: ptr(""), wantLen: 0, wantWarn: true},
		{name: "corrupt JSON", content: ptr(`[{"pack_id": `), wantLen: 0, wantWarn: true},
		{name: "object instead of list", content: ptr(`{"pack_id": "x", "version": [1,0,0]}`), wantLen: 0, wantWarn: true},
		{name: "empty list", content: ptr(`[]`), wantLen: 0},
		{name: "valid list", content: ptr(`[{"pack_id": "` + uuidA + `", "version": [1,0,0]}, {"pack_id": "` + uuidB + `", "version": "2.0.0"}]`), wantLen: 2},
		{name: "invalid entries dropped", content: ptr(`[{"pack_id": "` + uuidA + `"}, {"version": [1]}, 7, {"pack_id": "` + uuidB + `", "version": [1,0,0]}]`), wantLen: 1, wantWarn: true},
		{name: "unparsable version dropped", content: ptr(`[{"pack_id": "` + uuidA + `", "version": "latest"}]`), wantLen: 0, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "world_behavior_packs.json")
			if tt.content != nil {
				testutil.MustWriteFile(t, path, []byte(*tt.content))
			}

			var buf bytes.Buffer
			r := registry.Load(path, newLogger(&buf))
			if r.Len() != tt.wantLen {
				t.Errorf("Load() has %d entries, want %d", r.Len(), tt.wantLen)
			}
			if warned := strings.Contains(buf.String(), "WARN"); warned != tt.wantWarn {
				t.Errorf("warning logged = %v, want %v (log: %q)", warned, tt.wantWarn, buf.String())
			}
			if r.Path() != path {
				t.Errorf("Path() = %q, want %q", r.Path(), path)
			}
		})
	}
}

func TestLoadCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "world_resource_packs.json")
	testutil.MustWriteFile(t, path, []byte(`[
		{"pack_id": "`+uuidA+`", "version": [1,2,0]},
		{"pack_id": "`+strings.ToUpper(uuidA)+`", "version": [1,1,0]},
		{"pack_id": "`+uuidB+`", "version": [1,0,0]},
		{"pack_id": "`+uuidB+`", "version": [3,0,0]}
	]`))

	r := registry.Load(path, nil)
	if r.Len() != 2 {
		t.Fatalf("Load() has %d entries, want 2", r.Len())
	}
	a, _ := r.Lookup(uuidA)
	if a.Version.Compare(manifest.NewVersion(1, 2, 0)) != 0 {
		t.Errorf("%s kept version %s, want 1.2.0", uuidA, a.Version)
	}
	b, _ := r.Lookup(uuidB)
	if b.Version.Compare(manifest.NewVersion(3, 0, 0)) != 0 {
		t.Errorf("%s kept version %s, want 3.0.0", uuidB, b.Version)
	}
}

func TestPutReplacesByIdentity(t *testing.T) {
	t.Parallel()

	r := registry.New("unused.json", registry.NewEntry(uuidA, manifest.NewVersion(1, 0, 0)))

	old, replaced := r.Put(registry.NewEntry(manifest.PackID(strings.ToUpper(uuidA)), manifest.NewVersion(1, 1, 0)))
	if !replaced || old.Version.Compare(manifest.NewVersion(1, 0, 0)) != 0 {
		t.Fatalf("Put() = %v, %v; want the 1.0.0 entry replaced", old, replaced)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d after replace, want 1", r.Len())
	}

	if _, replaced := r.Put(registry.NewEntry(uuidB, manifest.NewVersion(1))); replaced {
		t.Error("Put() of a new identity reported a replacement")
	}
	if !r.Remove(uuidB) || r.Remove(uuidB) {
		t.Error("Remove() should succeed once")
	}
}

func TestRetain(t *testing.T) {
	t.Parallel()

	r := registry.New("unused.json",
		registry.NewEntry(uuidA, manifest.NewVersion(1)),
		registry.NewEntry(uuidB, manifest.NewVersion(1)),
	)
	dropped := r.Retain(func(e registry.Entry) bool { return e.PackID == uuidA })
	if len(dropped) != 1 || dropped[0].PackID != uuidB {
		t.Errorf("Retain() dropped %v, want only %s", dropped, uuidB)
	}
	if !r.Contains(uuidA) || r.Contains(uuidB) {
		t.Errorf("Retain() left %v", r.Entries())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "worlds", "Bedrock level", "world_behavior_packs.json")
	testutil.MustWriteFile(t, path, []byte(`[{"pack_id": "`+uuidA+`", "version": [1,0,0], "subpack": "high"}]`))

	r := registry.Load(path, nil)
	r.Put(registry.NewEntry(uuidB, manifest.MustParseVersion("2.1.0")))
	if err := r.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data := string(testutil.MustReadFile(t, path))
	for _, want := range []string{`"subpack": "high"`, `"pack_id": "` + uuidB + `"`, `"version": "2.1.0"`, "\n    {"} {
		if !strings.Contains(data, want) {
			t.Errorf("saved registry missing %q:\n%s", want, data)
		}
	}

	reloaded := registry.Load(path, nil)
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded %d entries, want 2", reloaded.Len())
	}
	if names := testutil.ListDir(t, filepath.Dir(path)); len(names) != 1 {
		t.Errorf("temporary files left behind: %v", names)
	}
}

func TestSaveEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "world_resource_packs.json")
	if err := registry.Save(path, nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := strings.TrimSpace(string(testutil.MustReadFile(t, path))); got != "[]" {
		t.Errorf("empty registry saved as %q, want []", got)
	}
}

func TestSaveErrorLeavesFileAlone(t *testing.T) {
	t.Parallel()

	// A directory where the registry file should be makes the rename fail.
	path := filepath.Join(t.TempDir(), "world_behavior_packs.json")
	if err := os.MkdirAll(filepath.Join(path, "occupied"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := registry.New(path, registry.NewEntry(uuidA, manifest.NewVersion(1))).Save()
	if !errors.Is(err, registry.ErrSave) {
		t.Fatalf("Save() error = %v, want ErrSave", err)
	}
	var saveErr *registry.SaveError
	if !errors.As(err, &saveErr) || saveErr.Path != path {
		t.Errorf("Save() error = %#v", err)
	}
	if names := testutil.ListDir(t, filepath.Dir(path)); len(names) != 1 {
		t.Errorf("temporary files left behind: %v", names)
	}
}

func ptr(s string) *string { return &s }

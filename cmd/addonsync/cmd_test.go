// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/bedrock-tools/addonsync/internal/config"
	"github.com/bedrock-tools/addonsync/internal/issue"
	"github.com/bedrock-tools/addonsync/internal/server"
	"github.com/bedrock-tools/addonsync/internal/testutil"
	"github.com/bedrock-tools/addonsync/pkg/bundle"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
	"github.com/bedrock-tools/addonsync/pkg/registry"
)

const (
	testLevel = "Test World"
	uuidBP    = "5d1c9a10-3f2e-4b8a-9c47-0e6f1b2a3c01"
	uuidRP    = "8e2f4b61-7a0c-4d93-b5e8-2c1d0f9a6b02"
)

type fakeServer struct {
	mu    sync.Mutex
	code  server.ExitCode
	err   error
	calls []server.Config
}

func (f *fakeServer) Run(_ context.Context, cfg server.Config) (server.ExitCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cfg)
	return f.code, f.err
}

type harness struct {
	dir    string
	app    *App
	srv    *fakeServer
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newHarness creates a server directory with server.properties and an
// App writing to buffers.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "server.properties"), []byte("server-name=Test\nlevel-name="+testLevel+"\n"))

	h := &harness{dir: dir, srv: &fakeServer{}, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	app, err := NewApp(Dependencies{
		Server: h.srv,
		Stdin:  strings.NewReader(""),
		Stdout: h.stdout,
		Stderr: h.stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	h.app = app
	return h
}

func (h *harness) run(args ...string) error {
	root := NewRootCommand(h.app)
	root.SetArgs(append([]string{"--server-dir", h.dir}, args...))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func (h *harness) worldPath(parts ...string) string {
	return filepath.Join(append([]string{h.dir, "worlds", testLevel}, parts...)...)
}

func (h *harness) stageBehavior(t *testing.T, name string, version []int) {
	t.Helper()
	testutil.WritePackZip(t, filepath.Join(h.dir, "addons", name+".mcpack"), name, testutil.Pack{
		UUID: uuidBP, Version: version, ModuleType: "data", Name: name,
	})
}

func (h *harness) registry(t *testing.T, c manifest.Category) []registry.Entry {
	t.Helper()
	return registry.Load(h.worldPath("world_"+c.String()+"_packs.json"), nil).Entries()
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: mutates package-level Version/Commit/BuildDate vars.
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	Version, Commit, BuildDate = "v1.2.3", "abc1234", "2025-06-15T10:00:00Z"
	if got, want := getVersionString(), "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}

	Version = "dev"
	if got, want := getVersionString(), "dev (built from source)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}
}

func TestRootSyncsThenStartsServer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stageBehavior(t, "Foo", []int{1, 0, 0})

	if err := h.run(); err != nil {
		t.Fatalf("root command error = %v\nstderr: %s", err, h.stderr)
	}

	if names := testutil.ListDir(t, h.worldPath("behavior_packs")); len(names) != 1 {
		t.Errorf("installed behavior packs = %v, want one", names)
	}
	entries := h.registry(t, manifest.CategoryBehavior)
	if len(entries) != 1 || !entries[0].PackID.Equal(uuidBP) {
		t.Errorf("registry = %+v", entries)
	}

	if len(h.srv.calls) != 1 {
		t.Fatalf("server started %d times, want 1", len(h.srv.calls))
	}
	call := h.srv.calls[0]
	if call.Dir != h.dir || !slices.Equal(call.Args, []string{"./bedrock_server"}) {
		t.Errorf("server config = %+v", call)
	}

	out := h.stdout.String()
	for _, want := range []string{"World: " + testLevel, "+ Foo 1.0.0", "behavior: 1 added", "Starting server"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestRootPropagatesServerExitCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.code = 3

	err := h.run()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 3 {
		t.Fatalf("error = %v, want ExitError with code 3", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.IssueId != issue.ServerExitedId {
		t.Errorf("error = %v, want a ServerExited ActionableError", err)
	}
	if !strings.Contains(h.stderr.String(), "server stopped with an error") {
		t.Errorf("stderr missing the server guide:\n%s", h.stderr)
	}
}

func TestRootServerStartFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.err = issue.NewErrorContext().
		WithOperation("start server").
		WithIssue(issue.ServerBinaryNotFoundId).
		Wrap(os.ErrNotExist).
		BuildError()

	err := h.run()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("error = %v, want ExitError with code 1", err)
	}
	if !strings.Contains(h.stderr.String(), "failed to start server") {
		t.Errorf("stderr = %s", h.stderr)
	}
}

func TestRootUsesConfiguredServerCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	testutil.MustWriteFile(t, filepath.Join(h.dir, "addonsync.toml"), []byte("[server]\ncommand = \"LD_LIBRARY_PATH=. ./bedrock_server --quiet\"\n"))

	if err := h.run(); err != nil {
		t.Fatalf("root command error = %v", err)
	}
	want := []string{"LD_LIBRARY_PATH=.", "./bedrock_server", "--quiet"}
	if got := h.srv.calls[0].Args; !slices.Equal(got, want) {
		t.Errorf("server args = %v, want %v", got, want)
	}
}

func TestSyncDoesNotStartServer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stageBehavior(t, "Foo", []int{1, 0, 0})

	if err := h.run("sync"); err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if len(h.srv.calls) != 0 {
		t.Error("sync must not start the server")
	}
	if len(h.registry(t, manifest.CategoryBehavior)) != 1 {
		t.Error("pack was not registered")
	}

	h.stdout.Reset()
	if err := h.run("sync"); err != nil {
		t.Fatalf("second sync error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "everything up to date") {
		t.Errorf("second sync output:\n%s", h.stdout)
	}
}

func TestSyncLevelFlag(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stageBehavior(t, "Foo", []int{1, 0, 0})

	if err := h.run("sync", "--level", "Other"); err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if names := testutil.ListDir(t, filepath.Join(h.dir, "worlds", "Other", "behavior_packs")); len(names) != 1 {
		t.Errorf("packs under Other = %v", names)
	}
	if testutil.Exists(t, h.worldPath()) {
		t.Error("the properties level must not be touched when --level is given")
	}
}

func TestSyncReportsReview(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	testutil.MustWriteFile(t, filepath.Join(h.dir, "addons", "Broken", "manifest.json"), []byte("{not json"))

	if err := h.run("sync"); err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "1 item left for manual review") || !strings.Contains(h.stdout.String(), "addons/Broken") {
		t.Errorf("stdout:\n%s", h.stdout)
	}
	if strings.Contains(h.stderr.String(), "Some packs need manual review") {
		t.Error("review guide should only be rendered in verbose mode")
	}

	if err := h.run("sync", "--verbose"); err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if !strings.Contains(h.stderr.String(), "Some packs need manual review") {
		t.Errorf("verbose stderr missing the review guide:\n%s", h.stderr)
	}
	if !testutil.Exists(t, filepath.Join(h.dir, "addons", "Broken", "manifest.json")) {
		t.Error("review folder must be left in place")
	}
}

func TestGCCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	stray := h.worldPath("behavior_packs", "Stray")
	testutil.WriteManifest(t, stray, testutil.Pack{UUID: uuidBP, Version: []int{1, 0, 0}, ModuleType: "data"})
	testutil.MustWriteFile(t, h.worldPath("world_resource_packs.json"),
		[]byte(`[{"pack_id": "`+uuidRP+`", "version": [1, 0, 0]}]`))
	testutil.MustWriteFile(t, filepath.Join(h.dir, "addons", "keep.mcpack"), []byte("not touched"))

	if err := h.run("gc"); err != nil {
		t.Fatalf("gc error = %v", err)
	}
	if testutil.Exists(t, stray) {
		t.Error("unregistered folder was not removed")
	}
	if entries := h.registry(t, manifest.CategoryResource); len(entries) != 0 {
		t.Errorf("orphaned entries kept: %+v", entries)
	}
	if !testutil.Exists(t, filepath.Join(h.dir, "addons", "keep.mcpack")) {
		t.Error("gc must not touch the addons directory")
	}
	if !strings.Contains(h.stdout.String(), "(not registered)") {
		t.Errorf("stdout:\n%s", h.stdout)
	}
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stageBehavior(t, "Foo", []int{1, 2, 0})
	if err := h.run("sync"); err != nil {
		t.Fatal(err)
	}
	testutil.MustWriteFile(t, h.worldPath("world_resource_packs.json"),
		[]byte(`[{"pack_id": "`+uuidRP+`", "version": [2, 0, 0]}]`))

	t.Run("json", func(t *testing.T) {
		h.stdout.Reset()
		if err := h.run("list", "--format", "json"); err != nil {
			t.Fatal(err)
		}
		var packs []listedPack
		if err := json.Unmarshal(h.stdout.Bytes(), &packs); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, h.stdout)
		}
		if len(packs) != 2 {
			t.Fatalf("packs = %+v, want 2", packs)
		}
		want := []listedPack{
			{Category: "behavior", PackID: uuidBP, Version: "1.2.0", Name: "Foo", Folder: packs[0].Folder, Installed: true},
			{Category: "resource", PackID: uuidRP, Version: "2.0.0"},
		}
		if !slices.Equal(packs, want) {
			t.Errorf("packs = %+v, want %+v", packs, want)
		}
		if packs[0].Folder == "" {
			t.Error("installed folder not reported")
		}
	})

	t.Run("yaml", func(t *testing.T) {
		h.stdout.Reset()
		if err := h.run("list", "-o", "yaml"); err != nil {
			t.Fatal(err)
		}
		var packs []listedPack
		if err := yaml.Unmarshal(h.stdout.Bytes(), &packs); err != nil {
			t.Fatalf("invalid YAML: %v\n%s", err, h.stdout)
		}
		if len(packs) != 2 || packs[1].Installed {
			t.Errorf("packs = %+v", packs)
		}
	})

	t.Run("table", func(t *testing.T) {
		h.stdout.Reset()
		if err := h.run("list"); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"CATEGORY", "Foo", "1.2.0", uuidRP, "(missing)"} {
			if !strings.Contains(h.stdout.String(), want) {
				t.Errorf("table missing %q:\n%s", want, h.stdout)
			}
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		if err := h.run("list", "--format", "xml"); err == nil {
			t.Error("expected an error for --format xml")
		}
	})
}

func TestListEmptyWorld(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run("list", "-o", "json"); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(h.stdout.String()); got != "[]" {
		t.Errorf("list output = %q, want []", got)
	}
	if testutil.Exists(t, h.worldPath()) {
		t.Error("list must not create the world directory")
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run("config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	path := filepath.Join(h.dir, "addonsync.toml")
	if !testutil.Exists(t, path) {
		t.Fatal("config init did not create addonsync.toml")
	}

	err := h.run("config", "init")
	if !errors.Is(err, config.ErrConfigExists) {
		t.Errorf("second init error = %v, want ErrConfigExists", err)
	}

	h.stdout.Reset()
	if err := h.run("config", "show", "--level", "Override"); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"server_dir = '" + h.dir + "'", "level_name = 'Override'", "[bundle]"} {
		if !strings.Contains(h.stdout.String(), want) {
			t.Errorf("config show missing %q:\n%s", want, h.stdout)
		}
	}
}

func TestMissingConfigFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.run("sync", "--config", filepath.Join(h.dir, "absent.toml"))

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("error = %v, want ExitError", err)
	}
	stderr := h.stderr.String()
	if !strings.Contains(stderr, "Verify the file path is correct") || !strings.Contains(stderr, "Failed to load addonsync.toml") {
		t.Errorf("stderr:\n%s", stderr)
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"plain", errors.New("boom"), 0},
		{"actionable", issue.NewErrorContext().WithOperation("x").WithIssue(issue.ConfigExistsId).BuildError(), issue.ConfigExistsId},
		{"no fixed point", fmt.Errorf("normalize addons: %w", bundle.ErrNoFixedPoint), issue.AddonsNotSettlingId},
		{"registry write", &registry.SaveError{Path: "r.json", Err: os.ErrPermission}, issue.RegistryWriteFailedId},
		{"permission", &os.PathError{Op: "rename", Path: "x", Err: os.ErrPermission}, issue.PermissionDeniedId},
		{"exit error", &ExitError{Code: 2, Err: issue.NewErrorContext().WithIssue(issue.ServerExitedId).BuildError()}, issue.ServerExitedId},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	if got := (&ExitError{Code: 4}).Error(); got != "exit status 4" {
		t.Errorf("Error() = %q", got)
	}
	cause := errors.New("server crashed")
	e := &ExitError{Code: 1, Err: cause}
	if e.Error() != "server crashed" || !errors.Is(e, cause) {
		t.Errorf("ExitError does not wrap its cause: %v", e)
	}
}

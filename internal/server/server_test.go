// SPDX-License-Identifier: MPL-2.0

package server

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bedrock-tools/addonsync/internal/issue"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell scripts")
	}
}

// writeScript creates an executable shell script named name in dir.
func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func newLauncher(t *testing.T, dir string, args ...string) (*Launcher, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	l, err := New(Config{
		Dir:         dir,
		Args:        args,
		Stdin:       strings.NewReader(""),
		Stdout:      &out,
		Stderr:      &out,
		StopTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, &out
}

func TestSplitAssignments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantEnv  []string
		wantRest []string
	}{
		{"plain", []string{"./bedrock_server"}, nil, []string{"./bedrock_server"}},
		{"library path", []string{"LD_LIBRARY_PATH=.", "./bedrock_server"}, []string{"LD_LIBRARY_PATH=."}, []string{"./bedrock_server"}},
		{"two assignments", []string{"A=1", "B_2=", "run", "X=3"}, []string{"A=1", "B_2="}, []string{"run", "X=3"}},
		{"not a name", []string{"1A=x", "run"}, nil, []string{"1A=x", "run"}},
		{"empty name", []string{"=x", "run"}, nil, []string{"=x", "run"}},
		{"only assignments", []string{"A=1"}, []string{"A=1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env, rest := splitAssignments(tt.args)
			if !slices.Equal(env, tt.wantEnv) || !slices.Equal(rest, tt.wantRest) {
				t.Errorf("splitAssignments(%v) = %v, %v; want %v, %v", tt.args, env, rest, tt.wantEnv, tt.wantRest)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if _, err := New(Config{Dir: dir, Args: []string{"A=1"}}); !errors.Is(err, ErrNoCommand) {
		t.Errorf("New() error = %v, want ErrNoCommand", err)
	}

	l, err := New(Config{Dir: dir, Args: []string{"LD_LIBRARY_PATH=.", "./bedrock_server"}})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "bedrock_server"); l.Program() != want {
		t.Errorf("Program() = %q, want %q", l.Program(), want)
	}
	if !slices.Equal(l.Env(), []string{"LD_LIBRARY_PATH=."}) {
		t.Errorf("Env() = %v", l.Env())
	}

	l, err = New(Config{Dir: dir, Args: []string{"bedrock_server"}})
	if err != nil {
		t.Fatal(err)
	}
	if l.Program() != "bedrock_server" {
		t.Errorf("bare program name should be left for PATH lookup, got %q", l.Program())
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	t.Run("runs in the server directory with env", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeScript(t, dir, "bedrock_server", `echo "level=$LEVEL args=$*" > started.txt`)

		l, _ := newLauncher(t, dir, "LEVEL=Bedrock", "./bedrock_server", "--port", "19132")
		code, err := l.Run(context.Background())
		if err != nil || !code.IsSuccess() {
			t.Fatalf("Run() = %d, %v", code, err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "started.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.TrimSpace(string(data)); got != "level=Bedrock args=--port 19132" {
			t.Errorf("server saw %q", got)
		}
	})

	t.Run("inherits stdio", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeScript(t, dir, "bedrock_server", `echo "Server started."`)

		l, out := newLauncher(t, dir, "./bedrock_server")
		if _, err := l.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "Server started.") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("propagates exit code", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeScript(t, dir, "bedrock_server", "exit 3")

		l, _ := newLauncher(t, dir, "./bedrock_server")
		code, err := l.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if code != 3 {
			t.Errorf("code = %d, want 3", code)
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		l, _ := newLauncher(t, dir, "./bedrock_server")
		_, err := l.Run(context.Background())

		var ae *issue.ActionableError
		if !errors.As(err, &ae) {
			t.Fatalf("error = %v, want ActionableError", err)
		}
		if ae.IssueId != issue.ServerBinaryNotFoundId || ae.Resource != filepath.Join(dir, "bedrock_server") {
			t.Errorf("ActionableError = %+v", ae)
		}
	})

	t.Run("missing binary on PATH", func(t *testing.T) {
		t.Parallel()
		l, _ := newLauncher(t, t.TempDir(), "addonsync-no-such-server")
		_, err := l.Run(context.Background())

		var ae *issue.ActionableError
		if !errors.As(err, &ae) || ae.IssueId != issue.ServerBinaryNotFoundId {
			t.Errorf("error = %v, want ServerBinaryNotFound", err)
		}
	})

	t.Run("not executable", func(t *testing.T) {
		t.Parallel()
		if os.Geteuid() == 0 {
			t.Skip("root can execute any file")
		}
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "bedrock_server"), []byte("#!/bin/sh\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		l, _ := newLauncher(t, dir, "./bedrock_server")
		_, err := l.Run(context.Background())

		var ae *issue.ActionableError
		if !errors.As(err, &ae) || ae.IssueId != issue.PermissionDeniedId {
			t.Errorf("error = %v, want PermissionDenied", err)
		}
	})

	t.Run("interrupt stops the server cleanly", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeScript(t, dir, "bedrock_server", `trap 'echo saved; exit 0' INT
echo ready
while :; do sleep 0.05; done`)

		l, out := newLauncher(t, dir, "./bedrock_server")
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(300*time.Millisecond, cancel)

		code, err := l.Run(ctx)
		if err != nil || !code.IsSuccess() {
			t.Fatalf("Run() = %d, %v (output %q)", code, err, out.String())
		}
		if !strings.Contains(out.String(), "saved") {
			t.Errorf("server did not receive the interrupt: %q", out.String())
		}
	})
}

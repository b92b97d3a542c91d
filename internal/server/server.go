// SPDX-License-Identifier: MPL-2.0

// Package server launches the Bedrock dedicated server once addons are in
// place.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bedrock-tools/addonsync/internal/issue"
	"github.com/bedrock-tools/addonsync/internal/logging"
)

// DefaultStopTimeout is how long the server gets to save the world after an
// interrupt before it is killed.
const DefaultStopTimeout = 30 * time.Second

// ErrNoCommand is returned when the argv is empty after env assignments.
var ErrNoCommand = errors.New("server command has no program")

type (
	// ExitCode is the process exit status of the server.
	ExitCode int

	// Config describes how to start the server.
	Config struct {
		// Dir is the working directory, normally the server directory.
		Dir string
		// Args is the split server.command. Leading NAME=value words are added
		// to the environment.
		Args []string

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer

		// StopTimeout bounds the wait after an interrupt. Zero means
		// DefaultStopTimeout.
		StopTimeout time.Duration
		Logger      *log.Logger
	}

	// Launcher runs the server process.
	Launcher struct {
		dir     string
		program string
		args    []string
		env     []string
		stdin   io.Reader
		stdout  io.Writer
		stderr  io.Writer
		timeout time.Duration
		logger  *log.Logger
	}
)

// IsSuccess reports a zero exit status.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// New validates cfg and resolves the program path. A program containing a
// path separator is resolved against Dir; a bare name is looked up in PATH
// at Run time.
func New(cfg Config) (*Launcher, error) {
	env, rest := splitAssignments(cfg.Args)
	if len(rest) == 0 {
		return nil, ErrNoCommand
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve server directory: %w", err)
	}

	program := rest[0]
	if strings.ContainsAny(program, `/\`) && !filepath.IsAbs(program) {
		program = filepath.Join(dir, program)
	}

	l := &Launcher{
		dir:     dir,
		program: program,
		args:    rest[1:],
		env:     env,
		stdin:   cfg.Stdin,
		stdout:  cfg.Stdout,
		stderr:  cfg.Stderr,
		timeout: cfg.StopTimeout,
		logger:  logging.OrDiscard(cfg.Logger),
	}
	if l.stdin == nil {
		l.stdin = os.Stdin
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.stderr == nil {
		l.stderr = os.Stderr
	}
	if l.timeout <= 0 {
		l.timeout = DefaultStopTimeout
	}
	return l, nil
}

// Program returns the resolved program path or name.
func (l *Launcher) Program() string { return l.program }

// Env returns the extra NAME=value assignments.
func (l *Launcher) Env() []string { return l.env }

// Run starts the server and waits for it to exit. A non-zero exit is
// reported through the ExitCode, not the error; the error is reserved for
// a server that could not be started. Canceling ctx interrupts the server
// and kills it after the stop timeout.
func (l *Launcher) Run(ctx context.Context) (ExitCode, error) {
	cmd := exec.CommandContext(ctx, l.program, l.args...)
	cmd.Dir = l.dir
	cmd.Env = append(os.Environ(), l.env...)
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	cmd.Cancel = func() error {
		l.logger.Info("stopping server", "grace", l.timeout)
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = l.timeout

	l.logger.Info("starting server", "program", l.program, "dir", l.dir)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return 1, l.startError(err)
	}
	err := cmd.Wait()
	l.logger.Debug("server exited", "duration", time.Since(start).Round(time.Second))

	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Terminated by a signal.
			code = 1
		}
		return ExitCode(code), nil
	}
	// A server that shut down cleanly after an interrupt.
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) || errors.Is(err, exec.ErrWaitDelay) {
		return 0, nil
	}
	return 1, issue.WrapWithContext(err, "wait for server", l.program)
}

func (l *Launcher) startError(err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("start server").
		WithResource(l.program)

	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		ctx = ctx.
			WithSuggestion("Check server.command in addonsync.toml").
			WithSuggestion("Run addonsync from the server directory or pass --server-dir").
			WithIssue(issue.ServerBinaryNotFoundId)
	case errors.Is(err, fs.ErrPermission):
		ctx = ctx.
			WithSuggestion("Make the server binary executable: chmod +x " + filepath.Base(l.program)).
			WithIssue(issue.PermissionDeniedId)
	}
	return ctx.Wrap(err).BuildError()
}

// splitAssignments separates leading NAME=value words, as a POSIX shell
// treats them, from the command words.
func splitAssignments(args []string) (env, rest []string) {
	for i, a := range args {
		if !isAssignment(a) {
			return args[:i:i], args[i:]
		}
	}
	return args, nil
}

func isAssignment(word string) bool {
	name, _, ok := strings.Cut(word, "=")
	if !ok || name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

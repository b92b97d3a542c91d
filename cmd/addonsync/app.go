// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/bedrock-tools/addonsync/internal/config"
	"github.com/bedrock-tools/addonsync/internal/logging"
	"github.com/bedrock-tools/addonsync/internal/metrics"
	"github.com/bedrock-tools/addonsync/internal/orchestrator"
	"github.com/bedrock-tools/addonsync/internal/server"
	"github.com/bedrock-tools/addonsync/internal/world"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference.
	App struct {
		Config ConfigProvider
		Server ServerRunner
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Server ServerRunner
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// ServerRunner starts the dedicated server and waits for it to exit.
	ServerRunner interface {
		Run(ctx context.Context, cfg server.Config) (server.ExitCode, error)
	}

	// session is the per-invocation state derived from configuration.
	session struct {
		cfg    *config.Config
		logger *log.Logger
		layout world.Layout
	}

	processRunner struct{}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Server == nil {
		deps.Server = processRunner{}
	}

	return &App{
		Config: deps.Config,
		Server: deps.Server,
		stdin:  deps.Stdin,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}, nil
}

// Run implements ServerRunner with a real process.
func (processRunner) Run(ctx context.Context, cfg server.Config) (server.ExitCode, error) {
	l, err := server.New(cfg)
	if err != nil {
		return 1, err
	}
	return l.Run(ctx)
}

// loadOptions turns the persistent flags into config load options.
func (f *rootFlagValues) loadOptions() config.LoadOptions {
	opts := config.LoadOptions{
		ConfigFilePath: f.configPath,
		ServerDir:      f.serverDir,
		LevelName:      f.level,
	}
	if f.verbose {
		opts.LogLevel = config.LogLevelDebug
	}
	return opts
}

// openSession loads configuration and resolves the world layout.
func (a *App) openSession(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, err := a.Config.Load(ctx, flags.loadOptions())
	if err != nil {
		return nil, err
	}
	logger := logging.New(a.stderr, cfg.Log.Level.String())
	layout, err := cfg.Layout(logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved world", "level", layout.Level(), "world", layout.WorldDir(), "addons", layout.AddonsDir())
	return &session{cfg: cfg, logger: logger, layout: layout}, nil
}

// orchestrator builds the sync pipeline for s, writing metrics when a
// textfile is configured.
func (s *session) orchestrator() (*orchestrator.Orchestrator, error) {
	var rec metrics.Recorder = metrics.Noop{}
	if path := s.cfg.MetricsPath(); path != "" {
		tf, err := metrics.NewTextfile(path)
		if err != nil {
			return nil, err
		}
		rec = tf
	}
	return orchestrator.New(orchestrator.Config{
		Layout:   s.layout,
		Patterns: s.cfg.Bundle.Patterns,
		Logger:   s.logger,
		Metrics:  rec,
	})
}

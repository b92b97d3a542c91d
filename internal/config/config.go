// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/bedrock-tools/addonsync/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "addonsync"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "addonsync"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix prefixes environment overrides, e.g. ADDONSYNC_LOG_LEVEL.
	EnvPrefix = "ADDONSYNC"
)

// ErrConfigExists is returned by CreateDefaultConfig when the file is present.
var ErrConfigExists = errors.New("config file already exists")

// loadWithOptions performs option-driven config loading. It returns the
// configuration and the path of the file that was read, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'addonsync config init' to create one").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else if candidate := DefaultConfigPath(opts.ServerDir); fileExists(candidate) {
		resolvedPath = candidate
	}

	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		v.SetConfigType(ConfigFileExt)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid TOML syntax").
				WithSuggestion("Use 'addonsync config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	opts.apply(&cfg)

	base := "."
	if resolvedPath != "" && !opts.overridesServerDir() {
		base = filepath.Dir(resolvedPath)
	}
	if !filepath.IsAbs(cfg.ServerDir) {
		cfg.ServerDir = filepath.Join(base, cfg.ServerDir)
	}
	abs, err := filepath.Abs(cfg.ServerDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve server directory: %w", err)
	}
	cfg.ServerDir = abs

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Compare your file with the output of 'addonsync config show'").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("server_dir", defaults.ServerDir)
	v.SetDefault("addons_dir", defaults.AddonsDir)
	v.SetDefault("properties_file", defaults.PropertiesFile)
	v.SetDefault("level_name", defaults.LevelName)
	v.SetDefault("server.command", defaults.Server.Command)
	v.SetDefault("bundle.patterns", defaults.Bundle.Patterns)
	v.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
	v.SetDefault("log.level", string(defaults.Log.Level))
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
}

// DefaultConfigPath returns addonsync.toml inside serverDir ("" means the
// working directory).
func DefaultConfigPath(serverDir string) string {
	if serverDir == "" {
		serverDir = "."
	}
	return filepath.Join(serverDir, ConfigFileName+"."+ConfigFileExt)
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to path. It never
// overwrites an existing file.
func CreateDefaultConfig(path string) error {
	if _, err := os.Lstat(path); err == nil {
		return issue.NewErrorContext().
			WithOperation("create configuration").
			WithResource(path).
			WithIssue(issue.ConfigExistsId).
			Wrap(ErrConfigExists).
			BuildError()
	}

	data, err := GenerateTOML(DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}

// GenerateTOML renders cfg as an addonsync.toml document.
func GenerateTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# addonsync configuration\n")
	buf.WriteString("# Relative paths resolve against server_dir; server_dir resolves against this file.\n\n")

	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

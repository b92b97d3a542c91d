// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"mvdan.cc/sh/v3/shell"
)

const (
	// LogLevelDebug logs every filesystem action.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs installs, upgrades and removals.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs only items that need attention.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only failures.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidServerCommand is the sentinel error wrapped by InvalidServerCommandError.
	ErrInvalidServerCommand = errors.New("invalid server command")
	// ErrInvalidBundlePattern is returned for patterns doublestar cannot compile.
	ErrInvalidBundlePattern = errors.New("invalid bundle pattern")
	// ErrInvalidDebounce is returned when watch.debounce is not a positive duration.
	ErrInvalidDebounce = errors.New("invalid debounce")
	// ErrInvalidPath is returned when a required path is blank.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level written to the log.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidServerCommandError is returned when server.command is empty or
	// cannot be split into words.
	InvalidServerCommandError struct {
		Value string
		Err   error
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// ServerDir is the Bedrock dedicated server installation.
		ServerDir string `toml:"server_dir" mapstructure:"server_dir"`
		// AddonsDir is the staging directory, relative to ServerDir unless absolute.
		AddonsDir string `toml:"addons_dir" mapstructure:"addons_dir"`
		// PropertiesFile is server.properties, relative to ServerDir unless absolute.
		PropertiesFile string `toml:"properties_file" mapstructure:"properties_file"`
		// LevelName overrides the level-name read from PropertiesFile.
		LevelName string `toml:"level_name" mapstructure:"level_name"`

		Server  ServerConfig  `toml:"server" mapstructure:"server"`
		Bundle  BundleConfig  `toml:"bundle" mapstructure:"bundle"`
		Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
		Log     LogConfig     `toml:"log" mapstructure:"log"`
		Watch   WatchConfig   `toml:"watch" mapstructure:"watch"`
	}

	// ServerConfig configures the server launch after a sync.
	ServerConfig struct {
		// Command is split with POSIX shell word rules and run from ServerDir.
		Command string `toml:"command" mapstructure:"command"`
	}

	// BundleConfig configures archive detection.
	BundleConfig struct {
		// Patterns are matched case-insensitively against file names in the
		// addons directory.
		Patterns []string `toml:"patterns" mapstructure:"patterns"`
	}

	// MetricsConfig configures the Prometheus textfile output.
	MetricsConfig struct {
		// Textfile is written after every sync. Empty disables metrics.
		Textfile string `toml:"textfile" mapstructure:"textfile"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `toml:"level" mapstructure:"level"`
	}

	// WatchConfig configures the watch command.
	WatchConfig struct {
		// Debounce is how long the addons directory must stay quiet before a
		// sync, as a Go duration string.
		Debounce string `toml:"debounce" mapstructure:"debounce"`
	}
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ServerDir:      ".",
		AddonsDir:      "addons",
		PropertiesFile: "server.properties",
		LevelName:      "",
		Server: ServerConfig{
			Command: "./bedrock_server",
		},
		Bundle: BundleConfig{
			Patterns: []string{"*.mcaddon", "*.mcpack", "*.zip"},
		},
		Metrics: MetricsConfig{
			Textfile: "",
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
		Watch: WatchConfig{
			Debounce: "2s",
		},
	}
}

// AddonsPath returns AddonsDir resolved against ServerDir.
func (c *Config) AddonsPath() string { return c.resolve(c.AddonsDir) }

// PropertiesPath returns PropertiesFile resolved against ServerDir.
func (c *Config) PropertiesPath() string { return c.resolve(c.PropertiesFile) }

// MetricsPath returns the metrics textfile resolved against ServerDir, or ""
// when metrics are disabled.
func (c *Config) MetricsPath() string {
	if strings.TrimSpace(c.Metrics.Textfile) == "" {
		return ""
	}
	return c.resolve(c.Metrics.Textfile)
}

// ServerArgs splits Server.Command into argv.
func (c *Config) ServerArgs() ([]string, error) {
	fields, err := shell.Fields(c.Server.Command, nil)
	if err != nil {
		return nil, &InvalidServerCommandError{Value: c.Server.Command, Err: err}
	}
	if len(fields) == 0 {
		return nil, &InvalidServerCommandError{Value: c.Server.Command, Err: errors.New("command is empty")}
	}
	return fields, nil
}

// DebounceDuration parses Watch.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(c.Watch.Debounce))
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidDebounce, c.Watch.Debounce, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w %q: must be positive", ErrInvalidDebounce, c.Watch.Debounce)
	}
	return d, nil
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.ServerDir, path)
}

// IsValid returns whether the Config has valid fields, and the field-level
// errors if it does not.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for name, value := range map[string]string{
		"server_dir":      c.ServerDir,
		"addons_dir":      c.AddonsDir,
		"properties_file": c.PropertiesFile,
	} {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s must not be empty", ErrInvalidPath, name))
		}
	}
	if _, err := c.ServerArgs(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Bundle.Patterns {
		if !doublestar.ValidatePattern(strings.ToLower(strings.TrimSpace(p))) {
			errs = append(errs, fmt.Errorf("%w %q", ErrInvalidBundlePattern, p))
		}
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if _, err := c.DebounceDuration(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Error implements the error interface for InvalidServerCommandError.
func (e *InvalidServerCommandError) Error() string {
	return fmt.Sprintf("invalid server command %q: %v", e.Value, e.Err)
}

// Unwrap returns ErrInvalidServerCommand for errors.Is() compatibility.
func (e *InvalidServerCommandError) Unwrap() error { return ErrInvalidServerCommand }

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error {
	return ErrInvalidLogLevel
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

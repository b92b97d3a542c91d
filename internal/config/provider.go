// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLoadOptions is returned by LoadOptions.Validate.
var ErrInvalidLoadOptions = errors.New("invalid load options")

// LoadOptions defines explicit configuration loading inputs. Non-empty
// fields other than ConfigFilePath override the loaded values.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ServerDir overrides server_dir and is where addonsync.toml is looked up.
	ServerDir string
	// LevelName overrides level_name.
	LevelName string
	// LogLevel overrides log.level.
	LogLevel LogLevel
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type fileProvider struct{}

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	cfg, _, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects whitespace-only values, which are almost always a quoting
// mistake on the command line.
func (o LoadOptions) Validate() error {
	var errs []error
	for name, value := range map[string]string{
		"config file": o.ConfigFilePath,
		"server dir":  o.ServerDir,
		"level name":  o.LevelName,
	} {
		if value != "" && strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s is blank", ErrInvalidLoadOptions, name))
		}
	}
	if o.LogLevel != "" {
		if valid, fieldErrs := o.LogLevel.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	return errors.Join(errs...)
}

func (o LoadOptions) apply(cfg *Config) {
	if o.overridesServerDir() {
		cfg.ServerDir = o.ServerDir
	}
	if o.LevelName != "" {
		cfg.LevelName = o.LevelName
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
}

func (o LoadOptions) overridesServerDir() bool { return o.ServerDir != "" }

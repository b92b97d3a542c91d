// SPDX-License-Identifier: MPL-2.0

// Package world computes the on-disk layout of a Bedrock dedicated server's
// world: where installed packs live and where their registries are kept.
package world

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bedrock-tools/addonsync/internal/logging"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
	"github.com/bedrock-tools/addonsync/pkg/registry"
)

const (
	// WorldsDirName is the server-relative directory holding every world.
	WorldsDirName = "worlds"

	// DefaultLevelName is the level the server creates when server.properties
	// does not name one.
	DefaultLevelName = "Bedrock level"
)

// ErrUnknownCategory is returned for categories that have no location.
var ErrUnknownCategory = errors.New("category has no install location")

// Layout resolves world paths for one server and level. All paths are absolute.
type Layout struct {
	serverDir string
	addonsDir string
	level     string
}

// New returns the layout for level under serverDir. A relative addonsDir is
// resolved against serverDir. An empty level selects DefaultLevelName.
func New(serverDir, addonsDir, level string) (Layout, error) {
	absServer, err := filepath.Abs(serverDir)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve server directory %q: %w", serverDir, err)
	}
	if !filepath.IsAbs(addonsDir) {
		addonsDir = filepath.Join(absServer, addonsDir)
	}
	level = strings.TrimSpace(level)
	if level == "" {
		level = DefaultLevelName
	}
	if strings.ContainsAny(level, `/\`) || level == "." || level == ".." {
		return Layout{}, fmt.Errorf("invalid level name %q", level)
	}
	return Layout{
		serverDir: absServer,
		addonsDir: filepath.Clean(addonsDir),
		level:     level,
	}, nil
}

// ServerDir returns the server installation directory.
func (l Layout) ServerDir() string { return l.serverDir }

// AddonsDir returns the staging directory for incoming addons.
func (l Layout) AddonsDir() string { return l.addonsDir }

// Level returns the level name.
func (l Layout) Level() string { return l.level }

// WorldDir returns worlds/<level>.
func (l Layout) WorldDir() string {
	return filepath.Join(l.serverDir, WorldsDirName, l.level)
}

// PacksDir returns the installed-packs directory for c.
func (l Layout) PacksDir(c manifest.Category) (string, error) {
	if !c.IsKnown() {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, c)
	}
	return filepath.Join(l.WorldDir(), c.String()+"_packs"), nil
}

// RegistryPath returns the world_<category>_packs.json file for c.
func (l Layout) RegistryPath(c manifest.Category) (string, error) {
	if !c.IsKnown() {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, c)
	}
	return filepath.Join(l.WorldDir(), "world_"+c.String()+"_packs.json"), nil
}

// EnsureDirs creates the installed-packs directories of every category.
func (l Layout) EnsureDirs() error {
	for _, c := range manifest.Categories() {
		dir, err := l.PacksDir(c)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s packs directory: %w", c, err)
		}
	}
	return nil
}

// LoadRegistries loads the registry of every category. Loading never fails;
// unreadable files are reported to logger and start empty.
func (l Layout) LoadRegistries(logger *log.Logger) (registry.Set, error) {
	logger = logging.OrDiscard(logger)
	set := make(registry.Set, len(manifest.Categories()))
	for _, c := range manifest.Categories() {
		path, err := l.RegistryPath(c)
		if err != nil {
			return nil, err
		}
		set[c] = registry.Load(path, logger.With("category", c.String()))
	}
	return set, nil
}

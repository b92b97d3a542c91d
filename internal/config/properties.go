// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/bedrock-tools/addonsync/internal/logging"
	"github.com/bedrock-tools/addonsync/internal/world"
)

// LevelNameKey is the server.properties key naming the active world.
const LevelNameKey = "level-name"

// ReadLevelName returns the level-name from the server.properties file at
// path. A missing or unreadable file and a missing or empty key all fall back
// to world.DefaultLevelName with a warning.
func ReadLevelName(path string, logger *log.Logger) string {
	logger = logging.OrDiscard(logger)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("server properties not found, using default level name", "path", path, "level", world.DefaultLevelName)
		} else {
			logger.Warn("server properties unreadable, using default level name", "path", path, "level", world.DefaultLevelName, "err", err)
		}
		return world.DefaultLevelName
	}

	level := strings.TrimSpace(v.GetString(LevelNameKey))
	if level == "" {
		logger.Warn("server properties have no level-name, using default", "path", path, "level", world.DefaultLevelName)
		return world.DefaultLevelName
	}
	return level
}

// Layout resolves the world layout for cfg. LevelName takes precedence over
// server.properties.
func (c *Config) Layout(logger *log.Logger) (world.Layout, error) {
	level := strings.TrimSpace(c.LevelName)
	if level == "" {
		level = ReadLevelName(c.PropertiesPath(), logger)
	}
	return world.New(c.ServerDir, c.AddonsPath(), level)
}

// SPDX-License-Identifier: MPL-2.0

// Package config handles addonsync configuration using Viper with TOML as the
// file format.
//
// Configuration is read from addonsync.toml in the server directory (or the
// file named by --config), overridden by ADDONSYNC_* environment variables
// and finally by command-line flags. Relative paths in the file resolve
// against the file's directory; relative paths from defaults and the
// environment resolve against the working directory.
//
// The package also reads the level name from the dedicated server's
// server.properties, which decides where packs are installed.
package config

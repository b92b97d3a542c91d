// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for addonsync.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/bedrock-tools/addonsync/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every command.
type rootFlagValues struct {
	configPath string
	serverDir  string
	level      string
	verbose    bool
}

// NewRootCommand builds the command tree around app. Running the root
// command without a subcommand syncs addons and then starts the server.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "addonsync",
		Short: "Install behavior and resource packs into a Bedrock server world",
		Long: TitleStyle.Render("addonsync") + SubtitleStyle.Render(" - Bedrock dedicated server addon installer") + `

addonsync unpacks .mcaddon, .mcpack and .zip files dropped into the addons
directory, installs every pack into the active world, keeps the world's pack
registries consistent with what is installed, and then starts the server.

` + SubtitleStyle.Render("Examples:") + `
  addonsync                 Sync addons, then start the server
  addonsync sync            Sync addons only
  addonsync list            Show the packs registered in the world
  addonsync watch           Sync whenever the addons directory changes
  addonsync config init     Create addonsync.toml in the server directory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSyncAndServe(cmd, app, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default is <server-dir>/addonsync.toml)")
	pf.StringVarP(&flags.serverDir, "server-dir", "C", "", "Bedrock server directory (default is the current directory)")
	pf.StringVar(&flags.level, "level", "", "world to manage (default is level-name from server.properties)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and detailed error output")

	rootCmd.AddCommand(
		newSyncCommand(app, flags),
		newGCCommand(app, flags),
		newListCommand(app, flags),
		newWatchCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the command's exit code. It is called
// by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

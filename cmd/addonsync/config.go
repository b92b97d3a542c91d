// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bedrock-tools/addonsync/internal/config"
)

// newConfigCommand creates the `addonsync config` command tree.
func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage addonsync configuration",
		Long: `Manage addonsync configuration.

Configuration is read from addonsync.toml in the server directory, or from
the file given with --config. Every key can be overridden with an
ADDONSYNC_ environment variable, e.g. ADDONSYNC_SERVER_COMMAND.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.Config.Load(cmd.Context(), flags.loadOptions())
			if err != nil {
				return app.reportError(cmd, err, flags.verbose)
			}
			data, err := config.GenerateTOML(cfg)
			if err != nil {
				return err
			}
			_, err = app.stdout.Write(data)
			return err
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default addonsync.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flags.configPath
			if path == "" {
				path = config.DefaultConfigPath(flags.serverDir)
			}
			if err := config.CreateDefaultConfig(path); err != nil {
				return app.reportError(cmd, err, flags.verbose)
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	return cfgCmd
}

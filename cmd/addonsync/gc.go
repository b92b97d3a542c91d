// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bedrock-tools/addonsync/internal/orchestrator"
)

func newGCCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Restore consistency between installed packs and the world registries",
		Long: `Remove installed pack folders that no registry lists and drop registry
entries whose pack folder is gone. The addons directory is not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.openSession(cmd.Context(), flags)
			if err != nil {
				return app.reportError(cmd, err, flags.verbose)
			}
			orch, err := s.orchestrator()
			if err != nil {
				return app.reportError(cmd, err, flags.verbose)
			}
			result, err := orch.Collect(cmd.Context())
			if err != nil {
				return app.reportError(cmd, err, flags.verbose)
			}

			summary := &orchestrator.Summary{Level: s.layout.Level(), AddonsPresent: true, GC: result}
			renderSummary(app.stdout, summary, s.layout.ServerDir())
			if n := summary.Failures(); n > 0 {
				for _, id := range summaryIssues(summary) {
					renderIssue(app.stderr, id)
				}
				cmd.SilenceErrors = true
				cmd.SilenceUsage = true
				return &ExitError{Code: 1, Err: fmt.Errorf("%s failed", plural(n, "item"))}
			}
			return nil
		},
	}
}

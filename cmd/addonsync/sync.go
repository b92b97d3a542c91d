// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bedrock-tools/addonsync/internal/issue"
	"github.com/bedrock-tools/addonsync/internal/orchestrator"
	"github.com/bedrock-tools/addonsync/internal/server"
)

func newSyncCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Install staged addons without starting the server",
		Long: `Run one synchronization of the addons directory with the active world:

  1. remove installed pack folders that no registry lists
  2. drop registry entries whose pack folder is gone
  3. unpack bundles until only pack folders remain
  4. install new packs and upgrade packs with a newer version

Folders with a broken manifest are left in place and listed for review.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.openSession(cmd.Context(), flags)
			if err != nil {
				return app.reportError(cmd, err, flags.verbose)
			}
			summary, err := app.sync(cmd.Context(), s, flags.verbose)
			if err != nil {
				return app.reportError(cmd, err, flags.verbose)
			}
			if n := summary.Failures(); n > 0 {
				cmd.SilenceErrors = true
				cmd.SilenceUsage = true
				return &ExitError{Code: 1, Err: fmt.Errorf("%s failed", plural(n, "item"))}
			}
			return nil
		},
	}
}

// sync runs one orchestration pass and prints its summary. The review guide
// is only shown in verbose mode; guides for failures are always shown.
func (a *App) sync(ctx context.Context, s *session, verbose bool) (*orchestrator.Summary, error) {
	orch, err := s.orchestrator()
	if err != nil {
		return nil, err
	}
	summary, err := orch.Run(ctx)
	renderSummary(a.stdout, summary, s.layout.ServerDir())
	if err != nil {
		return summary, err
	}
	for _, id := range summaryIssues(summary) {
		if id == issue.PacksNeedReviewId && !verbose {
			continue
		}
		renderIssue(a.stderr, id)
	}
	return summary, nil
}

// runSyncAndServe is the root command: a sync followed by the server. Items
// that need review or failed do not keep the server from starting, because
// the world and its registries stay consistent either way.
func runSyncAndServe(cmd *cobra.Command, app *App, flags *rootFlagValues) error {
	ctx := cmd.Context()
	s, err := app.openSession(ctx, flags)
	if err != nil {
		return app.reportError(cmd, err, flags.verbose)
	}
	args, err := s.cfg.ServerArgs()
	if err != nil {
		return app.reportError(cmd, err, flags.verbose)
	}

	if _, err := app.sync(ctx, s, flags.verbose); err != nil {
		return app.reportError(cmd, err, flags.verbose)
	}
	if ctx.Err() != nil {
		return nil
	}

	fmt.Fprintf(app.stdout, "\n%s %s\n\n", CmdStyle.Render("→"), "Starting server: "+strings.Join(args, " "))
	code, err := app.Server.Run(ctx, server.Config{
		Dir:    s.layout.ServerDir(),
		Args:   args,
		Stdin:  app.stdin,
		Stdout: app.stdout,
		Stderr: app.stderr,
		Logger: s.logger,
	})
	if err != nil {
		return app.reportError(cmd, err, flags.verbose)
	}
	if !code.IsSuccess() {
		exited := issue.NewErrorContext().
			WithOperation("run server").
			WithResource(strings.Join(args, " ")).
			WithIssue(issue.ServerExitedId).
			Wrap(fmt.Errorf("exit status %d", code)).
			BuildError()
		return app.reportError(cmd, &ExitError{Code: code, Err: exited}, flags.verbose)
	}
	return nil
}

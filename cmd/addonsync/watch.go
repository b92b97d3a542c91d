// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bedrock-tools/addonsync/internal/watch"
)

func newWatchCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync every time the addons directory changes",
		Long: `Run a sync, then watch the addons directory and sync again once it has
been quiet for watch.debounce (default 2s). The addons directory is created
when missing. Press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, app, flags)
		},
	}
}

func runWatch(cmd *cobra.Command, app *App, flags *rootFlagValues) error {
	ctx := cmd.Context()
	s, err := app.openSession(ctx, flags)
	if err != nil {
		return app.reportError(cmd, err, flags.verbose)
	}
	debounce, err := s.cfg.DebounceDuration()
	if err != nil {
		return app.reportError(cmd, err, flags.verbose)
	}
	orch, err := s.orchestrator()
	if err != nil {
		return app.reportError(cmd, err, flags.verbose)
	}
	if err := os.MkdirAll(s.layout.AddonsDir(), 0o755); err != nil {
		return app.reportError(cmd, fmt.Errorf("create addons directory: %w", err), flags.verbose)
	}

	runOnce := func(ctx context.Context) {
		summary, err := orch.Run(ctx)
		renderSummary(app.stdout, summary, s.layout.ServerDir())
		if err != nil {
			fmt.Fprintf(app.stderr, "%s %s\n", WarningStyle.Render("!"), formatErrorForDisplay(err, flags.verbose))
			if id := classifyError(err); id != 0 && flags.verbose {
				renderIssue(app.stderr, id)
			}
		}
	}

	runOnce(ctx)

	w, err := watch.New(watch.Config{
		Dir:      s.layout.AddonsDir(),
		Debounce: debounce,
		Logger:   s.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "\n%s Detected %s. Syncing...\n", CmdStyle.Render("→"), plural(len(changed), "change"))
			runOnce(ctx)
			return nil
		},
	})
	if err != nil {
		return app.reportError(cmd, err, flags.verbose)
	}
	fmt.Fprintf(app.stdout, "\n%s Watching %s (Ctrl+C to stop)...\n", CmdStyle.Render("→"), w.Dir())
	return w.Run(ctx)
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bedrock-tools/addonsync/internal/issue"
	"github.com/bedrock-tools/addonsync/internal/orchestrator"
	"github.com/bedrock-tools/addonsync/pkg/bundle"
	"github.com/bedrock-tools/addonsync/pkg/registry"
)

// classifyError maps a failure to its issue catalog entry. The zero Id means
// there is no guide for it.
func classifyError(err error) issue.Id {
	var ae *issue.ActionableError
	switch {
	case errors.As(err, &ae) && ae.IssueId != 0:
		return ae.IssueId
	case errors.Is(err, bundle.ErrNoFixedPoint):
		return issue.AddonsNotSettlingId
	case errors.Is(err, registry.ErrSave):
		return issue.RegistryWriteFailedId
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId
	}
	return 0
}

// summaryIssues returns the guides that apply to a finished sync.
func summaryIssues(s *orchestrator.Summary) []issue.Id {
	var ids []issue.Id
	if s.ReviewCount() > 0 {
		ids = append(ids, issue.PacksNeedReviewId)
	}
	seen := make(map[issue.Id]bool)
	for _, err := range failureErrors(s) {
		if id := classifyError(err); id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func failureErrors(s *orchestrator.Summary) []error {
	var errs []error
	if s.GC != nil {
		for _, f := range s.GC.Failed {
			errs = append(errs, f.Err)
		}
	}
	if s.Reconcile != nil {
		for _, f := range s.Reconcile.Failed {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// renderIssue writes the markdown guide for id to w. Styled output is only
// used for files, where glamour can detect a terminal.
func renderIssue(w io.Writer, id issue.Id) {
	i := issue.Get(id)
	if i == nil {
		return
	}
	style := "notty"
	if _, ok := w.(*os.File); ok {
		style = "auto"
	}
	rendered, err := i.Render(style)
	if err != nil {
		fmt.Fprintln(w, string(i.MarkdownMsg()))
		return
	}
	fmt.Fprint(w, rendered)
}

// reportError prints err with its guide and silences Cobra's own error
// output for cmd. The returned error is what the command returns to Cobra.
func (a *App) reportError(cmd *cobra.Command, err error, verbose bool) error {
	if err == nil {
		return nil
	}
	fmt.Fprintf(a.stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
	if id := classifyError(err); id != 0 {
		renderIssue(a.stderr, id)
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: 1, Err: err}
}

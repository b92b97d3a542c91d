// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bedrock-tools/addonsync/internal/gc"
	"github.com/bedrock-tools/addonsync/internal/orchestrator"
	"github.com/bedrock-tools/addonsync/internal/reconcile"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
)

// renderSummary writes the outcome of a sync to w. Paths are shown relative
// to base when possible.
func renderSummary(w io.Writer, s *orchestrator.Summary, base string) {
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render("World:"), s.Level)

	if s.Reconcile != nil {
		for _, ch := range s.Reconcile.Changes {
			renderChange(w, ch)
		}
	}
	if s.GC != nil {
		renderGC(w, s.GC, base)
	}

	if !s.AddonsPresent {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("no addons directory, nothing to install"))
	}
	if !s.Changed() && s.ReviewCount() == 0 && s.Failures() == 0 {
		fmt.Fprintf(w, "  %s\n", SuccessStyle.Render("✓ everything up to date"))
	}

	for _, c := range manifest.Categories() {
		added := s.Count(c, reconcile.ActionAdded)
		upgraded := s.Count(c, reconcile.ActionUpgraded)
		discarded := s.Count(c, reconcile.ActionDiscarded)
		if added+upgraded+discarded == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s %d added, %d upgraded, %d discarded\n",
			SubtitleStyle.Render(c.String()+":"), added, upgraded, discarded)
	}

	var review []string
	if s.GC != nil {
		for _, r := range s.GC.Review {
			review = append(review, fmt.Sprintf("%s (%s manifest)", rel(base, r.Path), r.Status))
		}
	}
	if s.Normalize != nil {
		for _, p := range s.Normalize.Corrupt {
			review = append(review, fmt.Sprintf("%s (not a zip archive)", rel(base, p)))
		}
	}
	if s.Reconcile != nil {
		for _, r := range s.Reconcile.Review {
			review = append(review, fmt.Sprintf("%s (%s manifest)", rel(base, r.Path), r.Status))
		}
	}
	if len(review) > 0 {
		fmt.Fprintf(w, "  %s\n", WarningStyle.Render(fmt.Sprintf("! %s left for manual review:", plural(len(review), "item"))))
		for _, line := range review {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}

	var failed []string
	if s.GC != nil {
		for _, f := range s.GC.Failed {
			failed = append(failed, fmt.Sprintf("%s: %v", rel(base, f.Path), f.Err))
		}
	}
	if s.Reconcile != nil {
		for _, f := range s.Reconcile.Failed {
			failed = append(failed, fmt.Sprintf("%s: %v", rel(base, f.Path), f.Err))
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(w, "  %s\n", ErrorStyle.Render(fmt.Sprintf("✗ %s failed:", plural(len(failed), "item"))))
		for _, line := range failed {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
}

func renderChange(w io.Writer, ch reconcile.Change) {
	name := ch.Name
	if name == "" {
		name = ch.PackID.String()
	}
	switch ch.Action {
	case reconcile.ActionAdded:
		fmt.Fprintf(w, "  %s %s %s %s\n", SuccessStyle.Render("+"), name, ch.Version, SubtitleStyle.Render("("+ch.Category.String()+")"))
	case reconcile.ActionUpgraded:
		fmt.Fprintf(w, "  %s %s %s → %s %s\n", SuccessStyle.Render("↑"), name, ch.Previous, ch.Version, SubtitleStyle.Render("("+ch.Category.String()+")"))
	case reconcile.ActionDiscarded:
		fmt.Fprintf(w, "  %s %s %s %s\n", SubtitleStyle.Render("="), name, ch.Version,
			SubtitleStyle.Render(fmt.Sprintf("(already have %s)", ch.Previous)))
	}
}

// renderGC writes garbage-collection removals to w.
func renderGC(w io.Writer, r *gc.Result, base string) {
	for _, f := range r.RemovedFolders {
		fmt.Fprintf(w, "  %s %s %s\n", WarningStyle.Render("-"), rel(base, f.Path), SubtitleStyle.Render("(not registered)"))
	}
	for _, e := range r.DroppedEntries {
		fmt.Fprintf(w, "  %s %s %s %s\n", WarningStyle.Render("-"), e.Entry.PackID, e.Entry.Version,
			SubtitleStyle.Render("(registered but not installed, "+e.Category.String()+")"))
	}
}

func rel(base, path string) string {
	if base == "" {
		return path
	}
	if r, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return path
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

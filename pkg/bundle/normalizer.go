// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/bedrock-tools/addonsync/internal/fsutil"
	"github.com/bedrock-tools/addonsync/internal/logging"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
)

// defaultMaxPasses bounds normalization when something outside the process
// keeps changing the directory.
const defaultMaxPasses = 256

// ErrNoFixedPoint is returned when the pass limit is reached.
var ErrNoFixedPoint = errors.New("addons directory did not settle")

// DefaultPatterns returns the bundle file patterns used when none are configured.
func DefaultPatterns() []string {
	return []string{"*.mcaddon", "*.mcpack", "*.zip"}
}

type (
	// Config holds the parameters for a Normalizer.
	Config struct {
		// Root is the addons staging directory.
		Root string

		// Patterns are doublestar patterns matched case-insensitively against
		// file names directly under Root. Empty means DefaultPatterns.
		Patterns []string

		// MaxPasses bounds the number of passes. Zero means the default.
		MaxPasses int

		// Logger receives per-item reports. nil discards them.
		Logger *log.Logger
	}

	// Normalizer flattens Root into installable pack folders.
	Normalizer struct {
		root      string
		patterns  []string
		maxPasses int
		logger    *log.Logger
	}

	// Report summarizes one Normalize call.
	Report struct {
		// Passes is the number of directory passes performed.
		Passes int
		// Extracted lists bundle files that were unpacked and deleted.
		Extracted []string
		// Corrupt lists bundle files that could not be unpacked and were left
		// in place.
		Corrupt []string
		// Unwrapped lists container folders whose contents were lifted into
		// Root.
		Unwrapped []string
		// Removed lists empty folders and stray files that were deleted.
		Removed []string
	}
)

// New validates cfg and returns a Normalizer.
func New(cfg Config) (*Normalizer, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("bundle: root directory is required")
	}
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("bundle: invalid pattern %q", p)
		}
		lowered = append(lowered, p)
	}
	maxPasses := cfg.MaxPasses
	if maxPasses <= 0 {
		maxPasses = defaultMaxPasses
	}
	return &Normalizer{
		root:      cfg.Root,
		patterns:  lowered,
		maxPasses: maxPasses,
		logger:    logging.OrDiscard(cfg.Logger),
	}, nil
}

// Root returns the staging directory.
func (n *Normalizer) Root() string { return n.root }

// IsBundle reports whether a file name matches one of the bundle patterns.
func (n *Normalizer) IsBundle(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range n.patterns {
		if ok, err := doublestar.Match(p, lower); err == nil && ok {
			return true
		}
	}
	return false
}

// Normalize runs passes until one changes nothing. A missing Root is not an
// error. Corrupt bundles are reported once and skipped for the rest of the
// call; they are retried by the next call.
func (n *Normalizer) Normalize(ctx context.Context) (*Report, error) {
	report := &Report{}
	skip := make(map[string]struct{})

	for report.Passes < n.maxPasses {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Passes++

		entries, err := fsutil.Snapshot(n.root)
		if err != nil {
			return report, err
		}

		changed := false

		// Bundles first: extraction surfaces new folders for the next pass.
		for _, e := range entries {
			if e.IsDir() || !n.IsBundle(e.Name()) {
				continue
			}
			path := filepath.Join(n.root, e.Name())
			if _, seen := skip[path]; seen {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}
			extracted, failed := n.extract(path, report)
			if extracted {
				changed = true
			}
			if failed {
				skip[path] = struct{}{}
			}
		}

		for _, e := range entries {
			path := filepath.Join(n.root, e.Name())
			switch {
			case e.IsDir():
				if n.normalizeDir(path, report) {
					changed = true
				}
			case n.IsBundle(e.Name()):
				// handled above
			case e.Type().IsRegular():
				if n.remove(path, "stray file is not a bundle", report) {
					changed = true
				}
			default:
				n.logger.Warn("ignoring unexpected entry in addons directory", "path", path, "mode", e.Type().String())
			}
		}

		if !changed {
			return report, nil
		}
	}

	return report, fmt.Errorf("%w after %d passes: %s", ErrNoFixedPoint, report.Passes, n.root)
}

// extract unpacks one bundle next to itself and deletes it. extracted
// reports whether a new folder appeared; failed reports whether the bundle
// is still in place and must not be retried during this call.
func (n *Normalizer) extract(path string, report *Report) (extracted, failed bool) {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if strings.TrimSpace(stem) == "" {
		stem = "bundle"
	}
	dest := filepath.Join(n.root, fsutil.UniqueName(n.root, stem))

	if err := Extract(path, dest); err != nil {
		n.logger.Warn("cannot extract bundle, leaving it for manual review", "path", path, "err", err)
		report.Corrupt = append(report.Corrupt, path)
		return false, true
	}

	if err := os.Remove(path); err != nil {
		n.logger.Warn("extracted bundle could not be deleted", "path", path, "err", err)
		report.Extracted = append(report.Extracted, path)
		return true, true
	}

	n.logger.Info("extracted bundle", "bundle", name, "into", filepath.Base(dest))
	report.Extracted = append(report.Extracted, path)
	return true, false
}

// normalizeDir leaves pack folders alone, deletes folders with no files and
// lifts the contents of anything else into the root. It reports whether the
// directory changed.
func (n *Normalizer) normalizeDir(dir string, report *Report) bool {
	if manifest.Exists(dir) {
		return false
	}

	hollow, err := fsutil.IsHollow(dir)
	if err != nil {
		n.logger.Warn("cannot inspect folder", "path", dir, "err", err)
		return false
	}
	if hollow {
		return n.remove(dir, "removed empty folder", report)
	}

	children, err := fsutil.Snapshot(dir)
	if err != nil {
		n.logger.Warn("cannot list folder", "path", dir, "err", err)
		return false
	}

	moved := false
	for _, child := range children {
		src := filepath.Join(dir, child.Name())
		dst := filepath.Join(n.root, fsutil.UniqueName(n.root, child.Name()))
		if err := os.Rename(src, dst); err != nil {
			n.logger.Warn("cannot lift entry out of container folder", "path", src, "err", err)
			return moved
		}
		moved = true
	}

	if err := os.Remove(dir); err != nil {
		n.logger.Warn("cannot remove unwrapped folder", "path", dir, "err", err)
		return moved
	}

	n.logger.Debug("unwrapped container folder", "path", dir, "entries", len(children))
	report.Unwrapped = append(report.Unwrapped, dir)
	return true
}

func (n *Normalizer) remove(path, msg string, report *Report) bool {
	if err := os.RemoveAll(path); err != nil {
		n.logger.Warn("cannot remove entry", "path", path, "err", err)
		return false
	}
	n.logger.Debug(msg, "path", path)
	report.Removed = append(report.Removed, path)
	return true
}

// Changed reports whether the normalization touched the filesystem.
func (r *Report) Changed() bool {
	return len(r.Extracted)+len(r.Unwrapped)+len(r.Removed) > 0
}

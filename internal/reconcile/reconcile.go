// SPDX-License-Identifier: MPL-2.0

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/bedrock-tools/addonsync/internal/fsutil"
	"github.com/bedrock-tools/addonsync/internal/logging"
	"github.com/bedrock-tools/addonsync/internal/world"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
	"github.com/bedrock-tools/addonsync/pkg/registry"
)

const (
	// ActionAdded means the identity was not registered.
	ActionAdded Action = "added"
	// ActionUpgraded means a strictly newer version replaced the installed one.
	ActionUpgraded Action = "upgraded"
	// ActionDiscarded means the registered version was the same or newer and
	// the incoming folder was deleted.
	ActionDiscarded Action = "discarded"
)

type (
	// Action is what happened to one incoming pack.
	Action string

	// Change records one pack that was added, upgraded or discarded.
	Change struct {
		Action   Action
		Category manifest.Category
		PackID   manifest.PackID
		Name     string
		Version  manifest.Version
		// Previous is the registered version for upgrades and discards.
		Previous manifest.Version
		// Source is the staging folder the pack came from.
		Source string
		// Dest is the installed folder. Empty for discards.
		Dest string
	}

	// Review is a folder left in the addons directory for a human.
	Review struct {
		Path   string
		Status manifest.Status
		Err    error
	}

	// Failure is a folder whose processing hit a filesystem error.
	Failure struct {
		Path string
		Err  error
	}

	// Result is the outcome of one reconciliation pass.
	Result struct {
		Changes []Change
		Review  []Review
		Failed  []Failure
	}

	// Reconciler moves staged packs into the world.
	Reconciler struct {
		layout     world.Layout
		registries registry.Set
		logger     *log.Logger
	}
)

// New returns a Reconciler writing into layout and registries. registries
// must hold every installable category; they are updated in place.
func New(layout world.Layout, registries registry.Set, logger *log.Logger) (*Reconciler, error) {
	for _, c := range manifest.Categories() {
		if _, err := registries.For(c); err != nil {
			return nil, err
		}
	}
	return &Reconciler{layout: layout, registries: registries, logger: logging.OrDiscard(logger)}, nil
}

// Reconcile processes every folder directly under the addons directory.
// Per-folder problems are recorded in the Result; the returned error is
// reserved for cancellation and an unreadable addons directory.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	result := &Result{}

	root := r.layout.AddonsDir()
	entries, err := fsutil.Snapshot(root)
	if err != nil {
		return result, err
	}

	for _, dir := range fsutil.Dirs(root, entries) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := r.reconcileDir(ctx, dir, result); err != nil {
			r.logger.Error("cannot install pack", "path", dir, "err", err)
			result.Failed = append(result.Failed, Failure{Path: dir, Err: err})
		}
	}
	return result, nil
}

func (r *Reconciler) reconcileDir(ctx context.Context, dir string, result *Result) error {
	inspected := manifest.Inspect(dir)
	if inspected.Status != manifest.StatusValid {
		r.logger.Warn("pack needs manual review, leaving it in place",
			"path", dir, "status", inspected.Status.String(), "err", inspected.Err)
		result.Review = append(result.Review, Review{Path: dir, Status: inspected.Status, Err: inspected.Err})
		return nil
	}

	m := inspected.Manifest
	category := m.Category()
	reg, err := r.registries.For(category)
	if err != nil {
		return err
	}
	change := Change{
		Category: category,
		PackID:   m.ID(),
		Name:     m.DisplayName(),
		Version:  m.Version(),
		Source:   dir,
	}
	logger := r.logger.With("pack_id", m.ID().String(), "category", category.String())

	existing, registered := reg.Lookup(m.ID())
	if registered {
		change.Previous = existing.Version
		if !m.Version().NewerThan(existing.Version) {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("discard %s: %w", dir, err)
			}
			logger.Info("discarded pack, registered version is not older",
				"name", change.Name, "incoming", m.Version().String(), "registered", existing.Version.String())
			change.Action = ActionDiscarded
			result.Changes = append(result.Changes, change)
			return nil
		}
	}

	// The new registry must be on disk before anything moves.
	next := reg.Clone()
	next.Put(registry.EntryFor(m))
	if err := next.Save(); err != nil {
		return fmt.Errorf("update %s registry: %w", category, err)
	}
	reg.Put(registry.EntryFor(m))

	packsDir, err := r.layout.PacksDir(category)
	if err != nil {
		return err
	}
	if err := r.removeInstalled(category, m.ID()); err != nil {
		return err
	}

	dest := filepath.Join(packsDir, fsutil.UniqueName(packsDir, filepath.Base(dir)))
	if err := fsutil.Move(ctx, dir, dest); err != nil {
		return err
	}

	change.Dest = dest
	change.Action = ActionAdded
	if registered {
		change.Action = ActionUpgraded
		logger.Info("upgraded pack", "name", change.Name,
			"from", change.Previous.String(), "to", change.Version.String(), "dest", dest)
	} else {
		logger.Info("added pack", "name", change.Name, "version", change.Version.String(), "dest", dest)
	}
	result.Changes = append(result.Changes, change)
	return nil
}

// removeInstalled deletes every installed folder of category that carries id.
func (r *Reconciler) removeInstalled(category manifest.Category, id manifest.PackID) error {
	packs, err := r.layout.Installed(category)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range packs {
		if !p.Readable() || !p.ID().Equal(id) {
			continue
		}
		if err := os.RemoveAll(p.Dir); err != nil {
			errs = append(errs, fmt.Errorf("remove superseded pack %s: %w", p.Dir, err))
			continue
		}
		r.logger.Debug("removed superseded pack", "path", p.Dir, "pack_id", id.String())
	}
	return errors.Join(errs...)
}

// Count returns the number of changes with action a in category c.
func (res *Result) Count(c manifest.Category, a Action) int {
	n := 0
	for _, ch := range res.Changes {
		if ch.Category == c && ch.Action == a {
			n++
		}
	}
	return n
}

// SPDX-License-Identifier: MPL-2.0

// Package gc restores the one-to-one correspondence between installed pack
// folders and registry entries.
//
// Two sweeps run per category. The unregistered-folder sweep deletes
// installed folders whose identity has no registry entry. The
// orphaned-entry sweep drops registry entries that no installed folder
// carries and writes the registry once. Both are idempotent and may run in
// either order; folders whose manifest cannot be read are never deleted.
package gc

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/bedrock-tools/addonsync/internal/logging"
	"github.com/bedrock-tools/addonsync/internal/world"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
	"github.com/bedrock-tools/addonsync/pkg/registry"
)

type (
	// RemovedFolder is an installed folder deleted by the unregistered sweep.
	RemovedFolder struct {
		Category manifest.Category
		PackID   manifest.PackID
		Path     string
	}

	// DroppedEntry is a registry entry removed by the orphaned sweep.
	DroppedEntry struct {
		Category manifest.Category
		Entry    registry.Entry
	}

	// Review is an installed folder left alone because its manifest could
	// not be read.
	Review struct {
		Category manifest.Category
		Path     string
		Status   manifest.Status
		Err      error
	}

	// Failure is a deletion or registry write that did not succeed. The next
	// sweep retries it.
	Failure struct {
		Category manifest.Category
		Path     string
		Err      error
	}

	// Result accumulates the outcome of one or more sweeps.
	Result struct {
		RemovedFolders []RemovedFolder
		DroppedEntries []DroppedEntry
		Review         []Review
		Failed         []Failure
	}

	// Collector runs the garbage-collection sweeps against one world.
	Collector struct {
		layout     world.Layout
		registries registry.Set
		logger     *log.Logger
	}
)

// New returns a Collector for layout. registries must hold every
// installable category and are updated in place.
func New(layout world.Layout, registries registry.Set, logger *log.Logger) (*Collector, error) {
	for _, c := range manifest.Categories() {
		if _, err := registries.For(c); err != nil {
			return nil, err
		}
	}
	return &Collector{layout: layout, registries: registries, logger: logging.OrDiscard(logger)}, nil
}

// Collect runs the unregistered-folder sweep and then the orphaned-entry
// sweep.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	result := &Result{}
	if err := c.sweepUnregistered(ctx, result); err != nil {
		return result, err
	}
	if err := c.sweepOrphaned(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// SweepUnregistered deletes installed folders whose identity is not
// registered in their category.
func (c *Collector) SweepUnregistered(ctx context.Context) (*Result, error) {
	result := &Result{}
	return result, c.sweepUnregistered(ctx, result)
}

// SweepOrphaned drops registry entries with no installed folder.
func (c *Collector) SweepOrphaned(ctx context.Context) (*Result, error) {
	result := &Result{}
	return result, c.sweepOrphaned(ctx, result)
}

func (c *Collector) sweepUnregistered(ctx context.Context, result *Result) error {
	for _, category := range manifest.Categories() {
		reg, err := c.registries.For(category)
		if err != nil {
			return err
		}
		packs, err := c.layout.Installed(category)
		if err != nil {
			return err
		}

		for _, p := range packs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !p.Readable() {
				c.logger.Warn("installed pack has no readable manifest, leaving it for manual review",
					"path", p.Dir, "category", category.String(), "err", p.Result.Err)
				result.Review = append(result.Review, Review{Category: category, Path: p.Dir, Status: p.Result.Status, Err: p.Result.Err})
				continue
			}
			if reg.Contains(p.ID()) {
				continue
			}
			if err := os.RemoveAll(p.Dir); err != nil {
				c.logger.Error("cannot remove unregistered pack", "path", p.Dir, "err", err)
				result.Failed = append(result.Failed, Failure{Category: category, Path: p.Dir, Err: err})
				continue
			}
			c.logger.Info("removed unregistered pack", "path", p.Dir, "pack_id", p.ID().String(), "category", category.String())
			result.RemovedFolders = append(result.RemovedFolders, RemovedFolder{Category: category, PackID: p.ID(), Path: p.Dir})
		}
	}
	return nil
}

func (c *Collector) sweepOrphaned(ctx context.Context, result *Result) error {
	for _, category := range manifest.Categories() {
		if err := ctx.Err(); err != nil {
			return err
		}
		reg, err := c.registries.For(category)
		if err != nil {
			return err
		}
		installed, err := c.layout.InstalledIDs(category)
		if err != nil {
			return err
		}
		keep := func(e registry.Entry) bool {
			_, ok := installed[e.PackID.Key()]
			return ok
		}

		next := reg.Clone()
		dropped := next.Retain(keep)
		if len(dropped) == 0 {
			continue
		}
		if err := next.Save(); err != nil {
			c.logger.Error("cannot write registry", "path", reg.Path(), "err", err)
			result.Failed = append(result.Failed, Failure{Category: category, Path: reg.Path(), Err: fmt.Errorf("drop orphaned entries: %w", err)})
			continue
		}
		reg.Retain(keep)

		for _, e := range dropped {
			c.logger.Info("dropped orphaned registry entry", "pack_id", e.PackID.String(), "version", e.Version.String(), "category", category.String())
			result.DroppedEntries = append(result.DroppedEntries, DroppedEntry{Category: category, Entry: e})
		}
	}
	return nil
}

// Changed reports whether any folder or entry was removed.
func (r *Result) Changed() bool {
	return len(r.RemovedFolders)+len(r.DroppedEntries) > 0
}

// Merge appends other's records to r.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.RemovedFolders = append(r.RemovedFolders, other.RemovedFolders...)
	r.DroppedEntries = append(r.DroppedEntries, other.DroppedEntries...)
	r.Review = append(r.Review, other.Review...)
	r.Failed = append(r.Failed, other.Failed...)
}

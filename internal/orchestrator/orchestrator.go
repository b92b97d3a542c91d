// SPDX-License-Identifier: MPL-2.0

// Package orchestrator runs one complete addon sync: garbage collection of
// stale state, normalization of the addons directory and reconciliation of
// the resulting pack folders.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bedrock-tools/addonsync/internal/gc"
	"github.com/bedrock-tools/addonsync/internal/logging"
	"github.com/bedrock-tools/addonsync/internal/metrics"
	"github.com/bedrock-tools/addonsync/internal/reconcile"
	"github.com/bedrock-tools/addonsync/internal/world"
	"github.com/bedrock-tools/addonsync/pkg/bundle"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
)

type (
	// Config holds the parameters for an Orchestrator.
	Config struct {
		Layout world.Layout
		// Patterns are the bundle file patterns. Empty means the defaults.
		Patterns []string
		Logger   *log.Logger
		// Metrics receives run outcomes. nil disables metrics.
		Metrics metrics.Recorder
	}

	// Orchestrator runs sync passes against one world.
	Orchestrator struct {
		layout     world.Layout
		normalizer *bundle.Normalizer
		logger     *log.Logger
		metrics    metrics.Recorder
	}

	// Summary is the outcome of one Run.
	Summary struct {
		Level string
		// AddonsPresent is false when the addons directory did not exist and
		// only garbage collection ran.
		AddonsPresent bool
		GC            *gc.Result
		Normalize     *bundle.Report
		Reconcile     *reconcile.Result
		Duration      time.Duration
	}
)

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	logger := logging.OrDiscard(cfg.Logger)
	normalizer, err := bundle.New(bundle.Config{
		Root:     cfg.Layout.AddonsDir(),
		Patterns: cfg.Patterns,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Orchestrator{layout: cfg.Layout, normalizer: normalizer, logger: logger, metrics: rec}, nil
}

// Layout returns the world layout the orchestrator works on.
func (o *Orchestrator) Layout() world.Layout { return o.layout }

// Run performs one sync: the unregistered-folder sweep, the orphaned-entry
// sweep, normalization and reconciliation, in that order. Registries are
// loaded once at the start of the run.
func (o *Orchestrator) Run(ctx context.Context) (summary *Summary, err error) {
	start := time.Now()
	summary = &Summary{Level: o.layout.Level()}
	defer func() {
		summary.Duration = time.Since(start)
		o.record(summary, err == nil)
	}()

	if err := o.layout.EnsureDirs(); err != nil {
		return summary, err
	}
	registries, err := o.layout.LoadRegistries(o.logger)
	if err != nil {
		return summary, err
	}

	collector, err := gc.New(o.layout, registries, o.logger)
	if err != nil {
		return summary, err
	}
	summary.GC, err = collector.Collect(ctx)
	if err != nil {
		return summary, fmt.Errorf("garbage collection: %w", err)
	}

	present, err := dirExists(o.layout.AddonsDir())
	if err != nil {
		return summary, err
	}
	if !present {
		o.logger.Debug("addons directory absent, nothing to install", "path", o.layout.AddonsDir())
		return summary, nil
	}
	summary.AddonsPresent = true

	summary.Normalize, err = o.normalizer.Normalize(ctx)
	if err != nil {
		return summary, fmt.Errorf("normalize addons: %w", err)
	}

	reconciler, err := reconcile.New(o.layout, registries, o.logger)
	if err != nil {
		return summary, err
	}
	summary.Reconcile, err = reconciler.Reconcile(ctx)
	if err != nil {
		return summary, fmt.Errorf("reconcile addons: %w", err)
	}
	return summary, nil
}

// Collect runs only the garbage-collection sweeps.
func (o *Orchestrator) Collect(ctx context.Context) (*gc.Result, error) {
	if err := o.layout.EnsureDirs(); err != nil {
		return nil, err
	}
	registries, err := o.layout.LoadRegistries(o.logger)
	if err != nil {
		return nil, err
	}
	collector, err := gc.New(o.layout, registries, o.logger)
	if err != nil {
		return nil, err
	}
	return collector.Collect(ctx)
}

func (o *Orchestrator) record(s *Summary, success bool) {
	if s.GC != nil {
		for _, f := range s.GC.RemovedFolders {
			o.metrics.ObserveCollected(f.Category.String(), "folder", 1)
		}
		for _, e := range s.GC.DroppedEntries {
			o.metrics.ObserveCollected(e.Category.String(), "entry", 1)
		}
		for range s.GC.Review {
			o.metrics.ObserveReview("gc")
		}
	}
	if s.Normalize != nil {
		o.metrics.ObserveBundles(len(s.Normalize.Extracted), len(s.Normalize.Corrupt))
	}
	if s.Reconcile != nil {
		for _, ch := range s.Reconcile.Changes {
			o.metrics.ObservePack(ch.Category.String(), string(ch.Action))
		}
		for range s.Reconcile.Review {
			o.metrics.ObserveReview("reconcile")
		}
	}
	o.metrics.ObserveRun(success && s.Failures() == 0, s.Duration)
	if err := o.metrics.Flush(); err != nil {
		o.logger.Warn("cannot write metrics", "err", err)
	}
}

// Changed reports whether the run modified the filesystem or a registry.
func (s *Summary) Changed() bool {
	switch {
	case s.GC != nil && s.GC.Changed():
		return true
	case s.Normalize != nil && s.Normalize.Changed():
		return true
	case s.Reconcile != nil && len(s.Reconcile.Changes) > 0:
		return true
	}
	return false
}

// Count returns the number of reconciled packs with action a in category c.
func (s *Summary) Count(c manifest.Category, a reconcile.Action) int {
	if s.Reconcile == nil {
		return 0
	}
	return s.Reconcile.Count(c, a)
}

// ReviewCount returns the number of folders left for manual review.
func (s *Summary) ReviewCount() int {
	n := 0
	if s.GC != nil {
		n += len(s.GC.Review)
	}
	if s.Normalize != nil {
		n += len(s.Normalize.Corrupt)
	}
	if s.Reconcile != nil {
		n += len(s.Reconcile.Review)
	}
	return n
}

// Failures returns the number of items that hit a filesystem error.
func (s *Summary) Failures() int {
	n := 0
	if s.GC != nil {
		n += len(s.GC.Failed)
	}
	if s.Reconcile != nil {
		n += len(s.Reconcile.Failed)
	}
	return n
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("inspect addons directory: %w", err)
	case !info.IsDir():
		return false, fmt.Errorf("addons path %s is not a directory", path)
	}
	return true, nil
}

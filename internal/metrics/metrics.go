// SPDX-License-Identifier: MPL-2.0

// Package metrics records sync outcomes as Prometheus metrics and writes
// them to a node-exporter textfile collector file.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "addonsync"

// Recorder receives the outcome of sync runs.
type Recorder interface {
	ObservePack(category, action string)
	ObserveReview(stage string)
	ObserveCollected(category, kind string, n int)
	ObserveBundles(extracted, corrupt int)
	ObserveRun(success bool, d time.Duration)
	// Flush persists the current values. Recorders without a sink return nil.
	Flush() error
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObservePack(string, string)           {}
func (Noop) ObserveReview(string)                 {}
func (Noop) ObserveCollected(string, string, int) {}
func (Noop) ObserveBundles(int, int)              {}
func (Noop) ObserveRun(bool, time.Duration)       {}
func (Noop) Flush() error                         { return nil }

// Textfile implements Recorder on a private registry written to a file
// after every run.
type Textfile struct {
	path     string
	registry *prometheus.Registry

	mu          sync.Mutex
	packs       *prometheus.CounterVec
	review      *prometheus.CounterVec
	collected   *prometheus.CounterVec
	bundles     *prometheus.CounterVec
	runs        *prometheus.CounterVec
	lastRun     prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Gauge
}

// NewTextfile returns a Recorder that writes to path on Flush.
func NewTextfile(path string) (*Textfile, error) {
	if path == "" {
		return nil, errors.New("metrics: textfile path is required")
	}
	t := &Textfile{
		path:     path,
		registry: prometheus.NewRegistry(),
		packs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packs_total",
			Help:      "Incoming packs by category and action",
		}, []string{"category", "action"}),
		review: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_total",
			Help:      "Folders left for manual review by stage",
		}, []string{"stage"}),
		collected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collected_total",
			Help:      "Garbage-collected folders and registry entries by category",
		}, []string{"category", "kind"}),
		bundles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_total",
			Help:      "Bundle files by extraction result",
		}, []string{"result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by success",
		}, []string{"success"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last sync run",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync run",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last sync run",
		}),
	}
	for _, c := range []prometheus.Collector{t.packs, t.review, t.collected, t.bundles, t.runs, t.lastRun, t.lastSuccess, t.duration} {
		if err := t.registry.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return t, nil
}

// Registry exposes the underlying registry.
func (t *Textfile) Registry() *prometheus.Registry { return t.registry }

func (t *Textfile) ObservePack(category, action string) {
	t.packs.WithLabelValues(category, action).Inc()
}

func (t *Textfile) ObserveReview(stage string) {
	t.review.WithLabelValues(stage).Inc()
}

func (t *Textfile) ObserveCollected(category, kind string, n int) {
	if n > 0 {
		t.collected.WithLabelValues(category, kind).Add(float64(n))
	}
}

func (t *Textfile) ObserveBundles(extracted, corrupt int) {
	if extracted > 0 {
		t.bundles.WithLabelValues("extracted").Add(float64(extracted))
	}
	if corrupt > 0 {
		t.bundles.WithLabelValues("corrupt").Add(float64(corrupt))
	}
}

func (t *Textfile) ObserveRun(success bool, d time.Duration) {
	now := float64(time.Now().Unix())
	t.runs.WithLabelValues(strconv.FormatBool(success)).Inc()
	t.lastRun.Set(now)
	if success {
		t.lastSuccess.Set(now)
	}
	t.duration.Set(d.Seconds())
}

// Flush writes every metric to the textfile, replacing it atomically.
func (t *Textfile) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := prometheus.WriteToTextfile(t.path, t.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", t.path, err)
	}
	return nil
}

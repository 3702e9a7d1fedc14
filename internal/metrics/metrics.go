// Package metrics collects and exposes Prometheus metrics for the
// remote-API and mirror subsystems.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records operational counters. A nil *Collector is valid and
// records nothing, so components can take metrics as an optional
// dependency without nil checks at every call site.
type Collector struct {
	remoteCalls   *prometheus.CounterVec
	mirroredFiles prometheus.Counter
	mirrorSkips   prometheus.Counter
	pullRequests  prometheus.Counter

	registry *prometheus.Registry
}

// NewCollector creates a Collector with its own registry. Using a private
// registry (rather than the global default) keeps tests from tripping
// over duplicate registration.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docs_remote_calls_total",
			Help: "Remote platform API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		mirroredFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docs_mirrored_files_total",
			Help: "Files written to local mirrors.",
		}),
		mirrorSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docs_mirror_skipped_paths_total",
			Help: "Mirror paths skipped because they were absent at the ref.",
		}),
		pullRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docs_pull_requests_opened_total",
			Help: "Pull requests opened by the edit pipeline.",
		}),
		registry: reg,
	}

	reg.MustRegister(c.remoteCalls, c.mirroredFiles, c.mirrorSkips, c.pullRequests)

	return c
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRemoteCall counts one remote API call.
// outcome is "ok", "not_found", "conflict", "unauthorized", or "error".
func (c *Collector) RecordRemoteCall(operation, outcome string) {
	if c == nil {
		return
	}
	c.remoteCalls.WithLabelValues(operation, outcome).Inc()
}

// RecordMirroredFile counts one file written to a local mirror.
func (c *Collector) RecordMirroredFile() {
	if c == nil {
		return
	}
	c.mirroredFiles.Inc()
}

// RecordMirrorSkip counts one requested path absent at the mirrored ref.
func (c *Collector) RecordMirrorSkip() {
	if c == nil {
		return
	}
	c.mirrorSkips.Inc()
}

// RecordPullRequest counts one opened pull request.
func (c *Collector) RecordPullRequest() {
	if c == nil {
		return
	}
	c.pullRequests.Inc()
}

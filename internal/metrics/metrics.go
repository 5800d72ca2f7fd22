// Package metrics holds the prometheus collectors for builds, lineage queries
// and searches.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vaultgraph"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics is a set of collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	buildDuration *prometheus.HistogramVec
	buildWrites   *prometheus.CounterVec
	buildWarnings prometheus.Counter

	lineageDuration *prometheus.HistogramVec
	lineageNodes    prometheus.Histogram

	searchDuration *prometheus.HistogramVec
	searchResults  prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: status (ok, error)
		buildDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Graph build duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"status"}),

		// Labels: element (node, edge), outcome (created, merged)
		buildWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "writes_total",
			Help:      "Nodes and edges written by builds",
		}, []string{"element", "outcome"}),

		buildWarnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "warnings_total",
			Help:      "Records skipped or partially applied by builds",
		}),

		// Labels: direction, status
		lineageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lineage",
			Name:      "duration_seconds",
			Help:      "Lineage query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction", "status"}),

		lineageNodes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lineage",
			Name:      "result_nodes",
			Help:      "Nodes returned per lineage query",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),

		searchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),

		searchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// BuildWrites is the per-build tally reported to ObserveBuild.
type BuildWrites struct {
	NodesCreated, NodesMerged int
	EdgesCreated, EdgesMerged int
	Warnings                  int
}

// ObserveBuild records one build. Writes are counted even for aborted builds.
func (m *Metrics) ObserveBuild(elapsed time.Duration, w BuildWrites, err error) {
	m.buildDuration.WithLabelValues(status(err)).Observe(elapsed.Seconds())
	m.buildWrites.WithLabelValues("node", "created").Add(float64(w.NodesCreated))
	m.buildWrites.WithLabelValues("node", "merged").Add(float64(w.NodesMerged))
	m.buildWrites.WithLabelValues("edge", "created").Add(float64(w.EdgesCreated))
	m.buildWrites.WithLabelValues("edge", "merged").Add(float64(w.EdgesMerged))
	m.buildWarnings.Add(float64(w.Warnings))
}

// ObserveLineage records one lineage query.
func (m *Metrics) ObserveLineage(elapsed time.Duration, direction string, nodes int, err error) {
	m.lineageDuration.WithLabelValues(direction, status(err)).Observe(elapsed.Seconds())
	if err == nil {
		m.lineageNodes.Observe(float64(nodes))
	}
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(elapsed time.Duration, results int, err error) {
	m.searchDuration.WithLabelValues(status(err)).Observe(elapsed.Seconds())
	if err == nil {
		m.searchResults.Observe(float64(results))
	}
}

// WriteTextfile writes all collectors to path in the text exposition format,
// for pickup by the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

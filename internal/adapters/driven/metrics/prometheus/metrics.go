// Package prometheus implements the Metrics port with Prometheus collectors.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
)

// Ensure Metrics implements the interface.
var _ driven.Metrics = (*Metrics)(nil)

const namespace = "scrapbox_rag"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	encodeTotal    *prometheus.CounterVec
	encodeDuration prometheus.Histogram
	bulkTotal      *prometheus.CounterVec
	chunksIndexed  prometheus.Counter
	progress       *prometheus.GaugeVec
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	searchesTotal  *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		encodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_requests_total",
			Help:      "Sparse encoder calls made during ingestion, by result.",
		}, []string{"result"}),
		encodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_duration_seconds",
			Help:      "Latency of sparse encoder calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		bulkTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_requests_total",
			Help:      "Bulk index requests, by result.",
		}, []string{"result"}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks written to the search store.",
		}),
		progress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_progress_ratio",
			Help:      "Processed over total chunks of the latest run per project.",
		}, []string{"project"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Finished ingestion runs, by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Duration of ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Search requests, by mode and result.",
		}, []string{"mode", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.encodeTotal,
		m.encodeDuration,
		m.bulkTotal,
		m.chunksIndexed,
		m.progress,
		m.runsTotal,
		m.runDuration,
		m.searchesTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ChunkEncoded records one encode call.
func (m *Metrics) ChunkEncoded(ok bool, elapsed time.Duration) {
	m.encodeTotal.WithLabelValues(result(ok)).Inc()
	m.encodeDuration.Observe(elapsed.Seconds())
}

// BatchIndexed records one bulk write.
func (m *Metrics) BatchIndexed(n int, ok bool) {
	m.bulkTotal.WithLabelValues(result(ok)).Inc()
	if ok {
		m.chunksIndexed.Add(float64(n))
	}
}

// Progress sets the progress ratio for a project.
func (m *Metrics) Progress(project string, processed, total int) {
	ratio := 1.0
	if total > 0 {
		ratio = float64(processed) / float64(total)
	}
	m.progress.WithLabelValues(project).Set(ratio)
}

// RunFinished records the end of an ingestion run.
func (m *Metrics) RunFinished(ok bool, elapsed time.Duration) {
	m.runsTotal.WithLabelValues(result(ok)).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// SearchServed records one search request.
func (m *Metrics) SearchServed(stream, ok bool) {
	mode := "answer"
	if stream {
		mode = "stream"
	}
	m.searchesTotal.WithLabelValues(mode, result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

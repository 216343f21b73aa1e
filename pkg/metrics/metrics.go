// Package metrics defines the Prometheus metric collectors used by the
// ingestion pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	PapersFetchedTotal   prometheus.Counter
	PapersIndexedTotal   prometheus.Counter
	ChunksIndexedTotal   prometheus.Counter
	PapersUnassigned     prometheus.Counter
	StageDuration        *prometheus.HistogramVec
	OrgTasksTotal        *prometheus.CounterVec
	PipelineRunsTotal    *prometheus.CounterVec
	PipelineScore        prometheus.Gauge
	EmbeddingCacheHits   prometheus.Counter
	EmbeddingCacheMisses prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		PapersFetchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "papers_fetched_total",
				Help: "Total papers fetched from the external source.",
			},
		),
		PapersIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "papers_indexed_total",
				Help: "Total papers fully processed and indexed.",
			},
		),
		ChunksIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunks_indexed_total",
				Help: "Total text chunks upserted into the search index.",
			},
		),
		PapersUnassigned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "papers_unassigned_total",
				Help: "Papers that no organization had capacity for.",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Wall-clock duration per pipeline stage.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		OrgTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "org_tasks_total",
				Help: "Per-organization task outcomes by stage and status.",
			},
			[]string{"stage", "status"},
		),
		PipelineRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Completed pipeline runs by terminal status.",
			},
			[]string{"status"},
		),
		PipelineScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_score",
				Help: "Scalar health score of the most recent run (0-1).",
			},
		),
		EmbeddingCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "embedding_cache_hits_total",
				Help: "Embedding LRU cache hits.",
			},
		),
		EmbeddingCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "embedding_cache_misses_total",
				Help: "Embedding LRU cache misses.",
			},
		),
	}

	prometheus.MustRegister(
		m.PapersFetchedTotal,
		m.PapersIndexedTotal,
		m.ChunksIndexedTotal,
		m.PapersUnassigned,
		m.StageDuration,
		m.OrgTasksTotal,
		m.PipelineRunsTotal,
		m.PipelineScore,
		m.EmbeddingCacheHits,
		m.EmbeddingCacheMisses,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics defines the Prometheus metric collectors used across the
// ranking pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	DocsIndexedTotal     prometheus.Counter
	DocsSkippedTotal     *prometheus.CounterVec
	IndexBuildDuration   prometheus.Histogram
	IndexTerms           prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryStageLatency    *prometheus.HistogramVec
	BatchStageDuration   *prometheus.HistogramVec
	CandidatesPerQuery   prometheus.Histogram
	TrainingIterations   prometheus.Counter
	ValidationNDCG       prometheus.Gauge
	LabelMismatchesTotal prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	RerankFailuresTotal  *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
	StreamMessagesTotal  *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ltr_docs_indexed_total",
				Help: "Total documents added to the field index.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_docs_skipped_total",
				Help: "Documents skipped during ingestion or indexing by reason.",
			},
			[]string{"reason"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ltr_index_build_duration_seconds",
				Help:    "Wall time of a full field index build.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ltr_index_terms",
				Help: "Distinct terms in the published index.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_queries_total",
				Help: "Queries processed by result type (ranked, zero_result, empty_query, error).",
			},
			[]string{"result_type"},
		),
		QueryStageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ltr_query_stage_latency_seconds",
				Help:    "Latency of one query through a pipeline stage.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"stage"},
		),
		BatchStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ltr_batch_stage_duration_seconds",
				Help:    "Wall time of one pipeline stage over a whole query batch.",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"stage"},
		),
		CandidatesPerQuery: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ltr_candidates_per_query",
				Help:    "Number of candidates retrieved per query.",
				Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
			},
		),
		TrainingIterations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ltr_training_iterations_total",
				Help: "Boosting iterations run across all training jobs.",
			},
		),
		ValidationNDCG: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ltr_validation_ndcg",
				Help: "Validation NDCG of the currently published model.",
			},
		),
		LabelMismatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ltr_label_mismatches_total",
				Help: "Training candidates excluded because no relevance label exists.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ltr_cache_hits_total",
				Help: "Ranking cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ltr_cache_misses_total",
				Help: "Ranking cache misses.",
			},
		),
		RerankFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_rerank_failures_total",
				Help: "Cross-encoder failures by cause.",
			},
			[]string{"cause"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ltr_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		StreamMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_stream_messages_total",
				Help: "Query stream messages by outcome.",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.DocsIndexedTotal,
		m.DocsSkippedTotal,
		m.IndexBuildDuration,
		m.IndexTerms,
		m.QueriesTotal,
		m.QueryStageLatency,
		m.BatchStageDuration,
		m.CandidatesPerQuery,
		m.TrainingIterations,
		m.ValidationNDCG,
		m.LabelMismatchesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RerankFailuresTotal,
		m.CircuitBreakerState,
		m.StreamMessagesTotal,
	)

	return m
}

// NewUnregistered returns collectors bound to a private registry. Library
// code uses it when the caller did not supply metrics.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics defines the Prometheus collectors for the ranking pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "sectionrank"

// Model call metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of text-generation calls",
		},
		[]string{"stage", "model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Text-generation call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage", "model"},
	)
)

// Pipeline metrics.
var (
	RankingOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_outcomes_total",
			Help:      "Ranking results by source (model, fallback, empty)",
		},
		[]string{"source"},
	)

	HallucinatedHeadingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hallucinated_headings_total",
			Help:      "Model-proposed headings rejected because they are not in the outline",
		},
	)

	SectionUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_units_total",
			Help:      "Extraction units by final status",
		},
		[]string{"status"},
	)

	CollectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collections_total",
			Help:      "Processed collections by result",
		},
		[]string{"result"},
	)

	CollectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collection_duration_seconds",
			Help:      "End-to-end collection processing time in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

var registered bool

// Register registers the pipeline collectors with the default registry. Safe
// to call more than once; only the first call registers.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		LLMRequestsTotal,
		LLMRequestDuration,
		RankingOutcomesTotal,
		HallucinatedHeadingsTotal,
		SectionUnitsTotal,
		CollectionsTotal,
		CollectionDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
	registered = true
}

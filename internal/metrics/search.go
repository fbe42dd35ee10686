package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search, vector store and vocabulary metrics.
var (
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "grantsearch",
			Name:      "search_duration_seconds",
			Help:      "End-to-end ranking pipeline duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
		},
	)

	SearchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "grantsearch",
			Name:      "search_candidates",
			Help:      "Candidates returned by the record store per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 40, 50},
		},
	)

	SearchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantsearch",
			Name:      "search_errors_total",
			Help:      "Failed searches by pipeline stage",
		},
		[]string{"stage"},
	)

	SearchWriteThroughTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantsearch",
			Name:      "search_write_through_total",
			Help:      "Candidate vectors synthesized during search",
		},
		[]string{"reason"}, // "missing" / "stale" / "corrupt"
	)

	VectorStoreEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "grantsearch",
			Name:      "vector_store_entries",
			Help:      "Vectors held in the in-process index",
		},
		[]string{"kind"},
	)

	VectorStoreCorruptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantsearch",
			Name:      "vector_store_corrupt_total",
			Help:      "Stored vectors skipped because they could not be decoded or compared",
		},
		[]string{"kind"},
	)

	VocabularyBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantsearch",
			Name:      "vocabulary_builds_total",
			Help:      "Vocabulary rebuilds",
		},
		[]string{"status"}, // "ok" / "degraded"
	)

	VocabularyTerms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "grantsearch",
			Name:      "vocabulary_terms",
			Help:      "Terms in the current vocabulary snapshot",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search, vector store and vocabulary metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchCandidates)
	prometheus.MustRegister(SearchErrorsTotal)
	prometheus.MustRegister(SearchWriteThroughTotal)
	prometheus.MustRegister(VectorStoreEntries)
	prometheus.MustRegister(VectorStoreCorruptTotal)
	prometheus.MustRegister(VocabularyBuildsTotal)
	prometheus.MustRegister(VocabularyTerms)
	searchMetricsRegistered = true
}

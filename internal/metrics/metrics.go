// Package metrics instruments the pipeline with Prometheus counters and
// histograms, grounded on the wider example corpus's observability
// packages (conexus's internal/observability.MetricsCollector in
// particular): a registry-injectable collector struct for testability,
// built with promauto so every metric self-registers on construction.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reposcorer"

// Collector holds every metric the pipeline emits. Exported fields mirror
// conexus's MetricsCollector shape so call sites read as plain field
// accesses rather than a lookup-by-name API.
type Collector struct {
	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	AICallTotal  *prometheus.CounterVec
	AICallErrors *prometheus.CounterVec
	AIRetries    prometheus.Counter
	AICallLatency *prometheus.HistogramVec
	BatchSize    prometheus.Histogram
}

// NewCollector creates a Collector registered against the process-wide
// default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a Collector registered against reg,
// letting tests use a throwaway prometheus.NewRegistry() instead of
// polluting the process-wide default.
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of pipeline runs, labeled by terminal status.",
		}, []string{"status"}),

		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a full run from start to a terminal state.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"status"}),

		AICallTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "Total AI work units, labeled by role: for scoring, packed batches plus individually scored files; for review, final-review calls.",
		}, []string{"role"}),

		AICallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_call_errors_total",
			Help:      "Total scored files that ended with an error after retries, labeled by role.",
		}, []string{"role"}),

		AIRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_call_retries_total",
			Help:      "Total retries recorded on scored files (the sum of their retries fields).",
		}),

		AICallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_call_latency_seconds",
			Help:      "Wall-clock latency of AI work, labeled by role: one observation per scoring pass (all batches and files) or per final-review call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role"}),

		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_batch_size_files",
			Help:      "Number of files packed into a single scoring batch.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}
}

// Default is the process-wide collector. The orchestrator and scoring
// engine record to it directly; neither takes a collector of its own.
var Default = NewCollector()

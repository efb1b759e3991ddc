// Package metrics exposes the pipeline's Prometheus collectors. A batch run
// is short lived, so metrics are pushed to a push gateway instead of scraped.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "quoteopt"

type Metrics struct {
	Registry *prometheus.Registry

	StageDuration    *prometheus.HistogramVec
	Runs             *prometheus.CounterVec
	QuotationsScored prometheus.Counter
	FeatureFailures  prometheus.Counter
	MergedQuotes     prometheus.Gauge
	SelectedQuotes   prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		QuotationsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotations_scored_total",
			Help:      "Quotations that received a win probability.",
		}),
		FeatureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_contract_failures_total",
			Help:      "Quotations left unscored because a feature could not be derived.",
		}),
		MergedQuotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "merged_quotes",
			Help:      "Rows in the visible merged quote generation.",
		}),
		SelectedQuotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_quotes",
			Help:      "Rows in the visible selected quote generation.",
		}),
	}
	m.Registry.MustRegister(
		m.StageDuration,
		m.Runs,
		m.QuotationsScored,
		m.FeatureFailures,
		m.MergedQuotes,
		m.SelectedQuotes,
	)
	return m
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Push sends the registry to a Prometheus push gateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(m.Registry).PushContext(ctx)
}

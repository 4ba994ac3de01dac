// Package metrics defines the Prometheus instrumentation for the matching
// engine: pipeline outcomes, stage latencies, notification dispatch results
// and cluster query timings.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultBuckets provides a common set of histogram buckets in seconds reused
// across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

// Engine holds the Prometheus metrics emitted by the matching engine.
type Engine struct {
	RunsTotal         *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	CandidatesRanked  prometheus.Histogram
	NotificationsSent *prometheus.CounterVec
	ClusterDuration   prometheus.Histogram
}

// NewEngine creates and registers the engine metrics on the default
// registerer.
func NewEngine() *Engine {
	return &Engine{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_pipeline_runs_total",
			Help: "Pipeline runs by terminal state (complete, cancelled, failed).",
		}, []string{"state"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bloodlink_pipeline_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: DefaultBuckets,
		}, []string{"stage"}),
		CandidatesRanked: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloodlink_pipeline_candidates_ranked",
			Help:    "Number of candidates produced per run after gating and ranking.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_notifications_total",
			Help: "Notification dispatches by outcome (sent, failed, timeout, skipped).",
		}, []string{"status"}),
		ClusterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloodlink_cluster_query_duration_seconds",
			Help:    "Time spent answering viewport cluster queries.",
			Buckets: DefaultBuckets,
		}),
	}
}

// ObserveStage records the duration of a completed pipeline stage.
func (e *Engine) ObserveStage(stage string, d time.Duration) {
	if e == nil {
		return
	}
	e.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RunFinished records the terminal state of a pipeline run.
func (e *Engine) RunFinished(state string) {
	if e == nil {
		return
	}
	e.RunsTotal.WithLabelValues(state).Inc()
}

// NotificationOutcome records a single notification dispatch result.
func (e *Engine) NotificationOutcome(status string) {
	if e == nil {
		return
	}
	e.NotificationsSent.WithLabelValues(status).Inc()
}

// Package metrics exposes Prometheus instrumentation for pipeline runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//nolint:gochecknoglobals // prometheus collectors are package singletons
var (
	// RunsStarted counts pipeline runs begun.
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mlcraft",
		Name:      "runs_started_total",
		Help:      "Number of pipeline runs started.",
	})

	// RunsFinished counts terminal run outcomes by status.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlcraft",
		Name:      "runs_finished_total",
		Help:      "Number of pipeline runs finished, by terminal status.",
	}, []string{"status"})

	// RunDuration observes whole-run wall time.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mlcraft",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of pipeline runs.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	// StageDuration observes per-stage wall time.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mlcraft",
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock duration of individual pipeline stages.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})

	// EventsDecoded counts protocol events by type, including the log events
	// that malformed lines degrade to.
	EventsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlcraft",
		Name:      "events_decoded_total",
		Help:      "Protocol events decoded from script output, by event type.",
	}, []string{"type"})

	// TuningTrials counts completed hyperparameter trials.
	TuningTrials = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mlcraft",
		Name:      "tuning_trials_total",
		Help:      "Number of completed hyperparameter tuning trials.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

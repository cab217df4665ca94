// Package telemetry provides Prometheus metrics for the profiling engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "profiler"

var (
	// TurnsTotal counts orchestrator runs.
	// Labels: module, kind (bootstrap, user)
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "turns_total",
			Help:      "Total number of dialogue turns handled",
		},
		[]string{"module", "kind"},
	)

	// GenerationFallbacks counts turns answered with scripted text.
	// Labels: module, reason (unavailable, failed, partial, canceled)
	GenerationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "fallbacks_total",
			Help:      "Total number of generation calls that degraded to fallback content",
		},
		[]string{"module", "reason"},
	)

	// ExtractionsTotal counts committed extractions.
	// Labels: module, source (ai, fallback)
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "artifacts_total",
			Help:      "Total number of extraction results by source",
		},
		[]string{"module", "source"},
	)

	// PersistenceFailures counts failed gateway writes.
	// Labels: write (turns, cursor, artifact)
	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "failures_total",
			Help:      "Total number of failed persistence writes",
		},
		[]string{"write"},
	)

	// StreamDuration tracks wall time from first event to complete.
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "stream_duration_seconds",
			Help:      "Duration of streamed turns in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"module"},
	)
)

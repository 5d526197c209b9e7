package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CycleDuration tracks the latency of discovery cycles
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "codecast_cycle_duration_seconds",
			Help: "Duration of discovery cycles in seconds",
			Buckets: []float64{
				0.1,  // 100ms
				0.25, // 250ms
				0.5,  // 500ms
				1.0,  // 1s
				2.5,  // 2.5s
				5.0,  // 5s
				10.0, // 10s
				30.0, // 30s
				60.0, // 1m
			},
		},
		[]string{"status"}, // success or degraded
	)

	// SourceFetchErrors counts non-fatal source fetch failures
	SourceFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecast_source_fetch_errors_total",
			Help: "Source fetch failures, per game and source",
		},
		[]string{"game", "source"},
	)

	// CodesDiscovered counts newly discovered codes
	CodesDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecast_codes_discovered_total",
			Help: "Newly discovered codes, per game",
		},
		[]string{"game"},
	)

	// Deliveries counts per-destination delivery outcomes
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecast_deliveries_total",
			Help: "Per-destination delivery outcomes",
		},
		[]string{"game", "status"}, // sent or failed
	)

	// CyclesSkipped counts triggers dropped because a cycle was in flight
	CyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codecast_cycles_skipped_total",
			Help: "Discovery triggers dropped while a cycle was in flight",
		},
	)
)

// RecordCycleDuration records the duration of one discovery cycle
func RecordCycleDuration(status string, duration float64) {
	CycleDuration.WithLabelValues(status).Observe(duration)
}

// RecordSourceFetchError records a non-fatal source fetch failure
func RecordSourceFetchError(game, source string) {
	SourceFetchErrors.WithLabelValues(game, source).Inc()
}

// RecordDelivery records one per-destination delivery outcome
func RecordDelivery(game, status string) {
	Deliveries.WithLabelValues(game, status).Inc()
}

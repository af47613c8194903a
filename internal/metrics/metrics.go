// Package metrics holds the process-level prometheus instruments the
// repository and engine write to. Scrape wiring lives outside the core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueLength tracks the number of pending events in the queue.
	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "capsim_queue_length",
		Help: "Current number of pending events in the simulation queue",
	})

	// EventLatency tracks per-event handler duration in milliseconds.
	EventLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "capsim_event_latency_ms",
		Help:    "Event handler duration in milliseconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	// BatchCommitErrors counts batches dropped after exhausting retries.
	BatchCommitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capsim_batch_commit_errors_total",
		Help: "Persistence batches dropped after all retries failed",
	})

	// ActionsTotal counts executed agent actions.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsim_actions_total",
		Help: "Executed agent actions",
	}, []string{"kind", "level", "profession"})

	// SimulationsActive tracks runs in a non-terminal status.
	SimulationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "capsim_simulations_active",
		Help: "Simulation runs currently in a non-terminal status",
	})

	// QueueFullTotal counts events refused admission by the queue.
	QueueFullTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capsim_queue_full_total",
		Help: "Events refused admission because the queue was full",
	})

	// EventsProcessed counts dispatched events by kind.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsim_events_processed_total",
		Help: "Events popped and dispatched by the main loop",
	}, []string{"kind"})
)

// Package metrics exposes the prometheus instrumentation surface shared by
// every component of the conversational core. It is an ambient concern: it
// carries through regardless of whether an ops dashboard consumes it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TurnsProcessed counts completed turns by the coordinator's outcome
	// label (completed, collecting, error).
	TurnsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "convergeai",
		Subsystem: "dialog",
		Name:      "turns_processed_total",
		Help:      "Number of conversational turns processed, by outcome.",
	}, []string{"outcome"})

	// TurnLatency records end-to-end turn processing latency.
	TurnLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "convergeai",
		Subsystem: "dialog",
		Name:      "turn_latency_seconds",
		Help:      "Latency of a full turn through the slot-filling graph.",
		Buckets:   prometheus.DefBuckets,
	})

	// ClassificationMethod counts which step of the classifier produced
	// the final intent decision (cache, pattern, llm).
	ClassificationMethod = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "convergeai",
		Subsystem: "classifier",
		Name:      "decisions_total",
		Help:      "Intent classification decisions, by resolving method.",
	}, []string{"method"})

	// GroundingScore records the RAG grounding score distribution.
	GroundingScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "convergeai",
		Subsystem: "policy",
		Name:      "grounding_score",
		Help:      "Grounding score computed for policy-agent answers.",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	// GraphNodeLatency records per-node latency in the slot-filling graph.
	GraphNodeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "convergeai",
		Subsystem: "graph",
		Name:      "node_latency_seconds",
		Help:      "Latency of individual slot-filling graph nodes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"node"})

	// PriorityQueueDepth tracks the current number of pending review items.
	PriorityQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "convergeai",
		Subsystem: "priority",
		Name:      "queue_depth",
		Help:      "Current number of entries awaiting human review.",
	})
)

// MustRegister registers all collectors against reg. Call once at startup.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		TurnsProcessed,
		TurnLatency,
		ClassificationMethod,
		GroundingScore,
		GraphNodeLatency,
		PriorityQueueDepth,
	)
}

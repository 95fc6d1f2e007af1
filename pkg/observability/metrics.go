package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleetshare"

var (
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "reservations_created_total", Help: "Total reservations admitted by the scheduler"})
	BookingConflicts    = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "booking_conflicts_total", Help: "Total reservation requests rejected due to overlap or lock contention"})
	SlotSuggestions     = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "slot_suggestions_total", Help: "Total alternative slot lists produced"})

	CheckpointsIssued  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "checkpoints_issued_total", Help: "Total handover tokens issued"})
	CheckpointsExpired = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "checkpoints_expired_total", Help: "Total checkpoints transitioned to expired, lazily or by sweep"})
	CheckpointScans    = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "checkpoint_transitions_total", Help: "Checkpoint state transitions by target state"},
		[]string{"to"},
	)

	FairnessComputations = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "fairness_computations_total", Help: "Total fairness score computations"})
	FairnessDegradations = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "fairness_degradations_total", Help: "Total priority lookups degraded due to collaborator failure"})

	RecommendationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "recommendations_emitted_total", Help: "Recommendations emitted by severity"},
		[]string{"severity"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Package metrics holds the engine's own Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObservationsTotal counts observations accepted by the intake.
	ObservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slogate",
		Subsystem: "ingest",
		Name:      "observations_total",
		Help:      "Observations accepted, by service and SLI.",
	}, []string{"service", "sli"})

	// LateEventsDropped counts observations whose timestamp fell outside the
	// accepted range, either older than every retained bucket or too far in
	// the future.
	LateEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slogate",
		Subsystem: "window",
		Name:      "late_events_dropped_total",
		Help:      "Observations dropped because their timestamp fell outside the accepted range.",
	}, []string{"service", "sli"})

	// EvaluationsTotal counts evaluation ticks, by outcome.
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slogate",
		Subsystem: "eval",
		Name:      "evaluations_total",
		Help:      "Evaluation ticks executed, by SLO and outcome.",
	}, []string{"slo", "outcome"})

	// EvaluationDuration observes how long a single evaluation tick took.
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "slogate",
		Subsystem: "eval",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of a single SLO evaluation tick.",
		Buckets:   prometheus.DefBuckets,
	})

	// AlertTransitions counts alert state machine transitions.
	AlertTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slogate",
		Subsystem: "alert",
		Name:      "transitions_total",
		Help:      "Alert rule state transitions, by rule and new status.",
	}, []string{"rule", "status"})

	// AlertsFiring tracks the number of rules currently firing.
	AlertsFiring = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "slogate",
		Subsystem: "alert",
		Name:      "firing",
		Help:      "Number of alert rules currently in Firing state.",
	})

	// NotificationsTotal counts notification dispatch attempts, by result.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slogate",
		Subsystem: "notify",
		Name:      "dispatches_total",
		Help:      "Notification dispatch attempts, by result.",
	}, []string{"result"})

	// DegradedObservability counts permissive policy decisions taken on missing data.
	DegradedObservability = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slogate",
		Subsystem: "policy",
		Name:      "degraded_observability_total",
		Help:      "CanDeploy decisions that defaulted to permissive because the SLI had no data.",
	}, []string{"service", "slo"})
)

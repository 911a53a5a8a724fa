package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Saga metrics. Registered once on the default registry; the /metrics route
// is exposed from cmd/server.
var (
	SagaTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civitas",
		Subsystem: "saga",
		Name:      "transitions_total",
		Help:      "State-changing registration advances by target state.",
	}, []string{"state"})

	SagaReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civitas",
		Subsystem: "saga",
		Name:      "replays_total",
		Help:      "Advance calls absorbed as replay-safe no-ops by target state.",
	}, []string{"state"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civitas",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook deliveries by event type and outcome (applied, replayed, unresolved, error).",
	}, []string{"type", "outcome"})

	Rollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "civitas",
		Subsystem: "saga",
		Name:      "rollbacks_total",
		Help:      "Compensation runs for failed registration attempts.",
	})

	AssetJobRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "civitas",
		Subsystem: "assets",
		Name:      "job_retries_total",
		Help:      "Asset generation jobs re-enqueued after a transient failure.",
	})

	AssetJobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "civitas",
		Subsystem: "assets",
		Name:      "jobs_dropped_total",
		Help:      "Asset generation jobs dropped after exhausting retries.",
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for account lifecycle transitions.
type Metrics struct {
	DeactivationsRequested prometheus.Counter
	DeactivationsCancelled prometheus.Counter
	DeactivationsExecuted  prometheus.Counter
	ReactivationsRequested prometheus.Counter
	ReactivationsReviewed  *prometheus.CounterVec
	ForcedLogouts          prometheus.Counter
}

// New creates and registers the lifecycle metrics.
func New() *Metrics {
	return &Metrics{
		DeactivationsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_lifecycle_deactivations_requested_total",
			Help: "Deactivation requests accepted.",
		}),
		DeactivationsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_lifecycle_deactivations_cancelled_total",
			Help: "Deactivation requests cancelled during the grace period.",
		}),
		DeactivationsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_lifecycle_deactivations_executed_total",
			Help: "Accounts archived and marked deactivated.",
		}),
		ReactivationsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_lifecycle_reactivations_requested_total",
			Help: "Reactivation requests filed by deactivated users.",
		}),
		ReactivationsReviewed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "applygate_lifecycle_reactivations_reviewed_total",
			Help: "Reactivation reviews by decision.",
		}, []string{"decision"}),
		ForcedLogouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_lifecycle_forced_logouts_total",
			Help: "Sessions invalidated by the lifecycle gate.",
		}),
	}
}

func (m *Metrics) RecordDeactivationRequested() { m.DeactivationsRequested.Inc() }
func (m *Metrics) RecordDeactivationCancelled() { m.DeactivationsCancelled.Inc() }
func (m *Metrics) RecordDeactivationExecuted()  { m.DeactivationsExecuted.Inc() }
func (m *Metrics) RecordReactivationRequested() { m.ReactivationsRequested.Inc() }
func (m *Metrics) RecordReactivationReviewed(decision string) {
	m.ReactivationsReviewed.WithLabelValues(decision).Inc()
}
func (m *Metrics) RecordForcedLogout() { m.ForcedLogouts.Inc() }

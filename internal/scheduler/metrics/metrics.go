package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the deactivation scheduler.
type Metrics struct {
	Runs        prometheus.Counter
	Succeeded   prometheus.Counter
	Failed      prometheus.Counter
	RunDuration prometheus.Histogram
}

// New creates and registers the scheduler metrics.
func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_scheduler_runs_total",
			Help: "Scheduler batch runs started.",
		}),
		Succeeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_scheduler_accounts_succeeded_total",
			Help: "Accounts successfully archived and deactivated.",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_scheduler_accounts_failed_total",
			Help: "Accounts whose deactivation failed and will be retried.",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "applygate_scheduler_run_duration_seconds",
			Help:    "Wall time of one scheduler batch run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

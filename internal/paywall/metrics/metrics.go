package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the disclosure gate.
type Metrics struct {
	Disclosures     *prometheus.CounterVec
	Replays         prometheus.Counter
	RejectedNoFunds prometheus.Counter
}

// New creates and registers the paywall metrics.
func New() *Metrics {
	return &Metrics{
		Disclosures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "applygate_paywall_disclosures_total",
			Help: "First-time field disclosures by field key.",
		}, []string{"field"}),
		Replays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_paywall_replays_total",
			Help: "Disclosure requests answered free because the grant already existed.",
		}),
		RejectedNoFunds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_paywall_rejected_no_funds_total",
			Help: "Disclosure requests rejected for insufficient balance.",
		}),
	}
}

func (m *Metrics) RecordDisclosure(field string) {
	m.Disclosures.WithLabelValues(field).Inc()
}

func (m *Metrics) RecordReplay() {
	m.Replays.Inc()
}

func (m *Metrics) RecordRejectedNoFunds() {
	m.RejectedNoFunds.Inc()
}

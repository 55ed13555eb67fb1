package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the credit ledger.
type Metrics struct {
	CreditsIssued       *prometheus.CounterVec
	CreditsSpent        prometheus.Counter
	InsufficientBalance prometheus.Counter
}

// New creates and registers the ledger metrics.
func New() *Metrics {
	return &Metrics{
		CreditsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "applygate_ledger_credits_issued_total",
			Help: "Credits appended to ledgers by transaction type.",
		}, []string{"type"}),
		CreditsSpent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_ledger_credits_spent_total",
			Help: "Credits debited from ledgers.",
		}),
		InsufficientBalance: promauto.NewCounter(prometheus.CounterOpts{
			Name: "applygate_ledger_insufficient_balance_total",
			Help: "Debits rejected because the balance would go negative.",
		}),
	}
}

func (m *Metrics) RecordCredit(txType string, amount int64) {
	m.CreditsIssued.WithLabelValues(txType).Add(float64(amount))
}

func (m *Metrics) RecordDebit(amount int64) {
	m.CreditsSpent.Add(float64(amount))
}

func (m *Metrics) RecordInsufficientBalance() {
	m.InsufficientBalance.Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts the money-movement events the engine performs.
type SettlementMetrics struct {
	paymentsConfirmed *prometheus.CounterVec
	escrowTransitions *prometheus.CounterVec
	commissionsPaid   prometheus.Counter
	amountMoved       *prometheus.CounterVec
}

// NewSettlementMetrics registers settlement counters on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	paymentsConfirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Payment confirmations by outcome.",
	}, []string{"outcome"})
	escrowTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_transitions_total",
		Help: "Escrow transitions by target status.",
	}, []string{"status"})
	commissionsPaid := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "commissions_paid_total",
		Help: "Commission payouts recorded by admins.",
	})
	amountMoved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_amount_kobo_total",
		Help: "Kobo moved by settlement flow.",
	}, []string{"flow"})
	reg.MustRegister(paymentsConfirmed, escrowTransitions, commissionsPaid, amountMoved)
	return &SettlementMetrics{
		paymentsConfirmed: paymentsConfirmed,
		escrowTransitions: escrowTransitions,
		commissionsPaid:   commissionsPaid,
		amountMoved:       amountMoved,
	}
}

// IncPaymentConfirmed records one payment confirmation outcome.
func (m *SettlementMetrics) IncPaymentConfirmed(outcome string) {
	if m == nil || m.paymentsConfirmed == nil {
		return
	}
	m.paymentsConfirmed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncEscrowTransition records one escrow transition to the given status.
func (m *SettlementMetrics) IncEscrowTransition(status string) {
	if m == nil || m.escrowTransitions == nil {
		return
	}
	m.escrowTransitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncCommissionPaid records one commission payout.
func (m *SettlementMetrics) IncCommissionPaid() {
	if m == nil || m.commissionsPaid == nil {
		return
	}
	m.commissionsPaid.Inc()
}

// AddAmountMoved accumulates kobo moved by the named flow.
func (m *SettlementMetrics) AddAmountMoved(flow string, amountKobo int64) {
	if m == nil || m.amountMoved == nil {
		return
	}
	if amountKobo < 0 {
		return
	}
	m.amountMoved.WithLabelValues(normalizeLabel(flow)).Add(float64(amountKobo))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records outcomes of the stock and billing transactions.
type EngineMetrics struct {
	txDuration *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
	movements  *prometheus.CounterVec
	refunds    prometheus.Counter
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
// A nil registerer yields a no-op instance, which keeps the services usable
// in tests without a registry.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_tx_duration_seconds",
		Help:    "Duration of engine transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_op_total",
		Help: "Engine operations by result.",
	}, []string{"op", "result"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Stock movements appended to the ledger, by type.",
	}, []string{"type"})
	refunds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refund_payments_total",
		Help: "Refund payment rows written by invoice cancellation.",
	})
	reg.MustRegister(txDuration, outcomes, movements, refunds)
	return &EngineMetrics{
		txDuration: txDuration,
		outcomes:   outcomes,
		movements:  movements,
		refunds:    refunds,
	}
}

// ObserveTx records the duration for the named operation.
func (m *EngineMetrics) ObserveTx(op string, duration time.Duration) {
	if m == nil || m.txDuration == nil {
		return
	}
	m.txDuration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (m *EngineMetrics) IncSuccess(op string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(op), "success").Inc()
}

// IncFailure increments the failure counter for the named operation.
func (m *EngineMetrics) IncFailure(op string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(op), "failure").Inc()
}

// IncMovement counts one appended ledger movement of the given type.
func (m *EngineMetrics) IncMovement(movementType string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(movementType)).Inc()
}

// IncRefund counts one refund payment row.
func (m *EngineMetrics) IncRefund() {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

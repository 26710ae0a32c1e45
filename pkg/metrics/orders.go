package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks the order lifecycle across every session of the process.
type OrderMetrics struct {
	created     prometheus.Counter
	transitions *prometheus.CounterVec
	corruption  *prometheus.CounterVec
	pending     prometheus.Gauge
}

// NewOrderMetrics registers the lifecycle metrics. A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Orders created at checkout.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Order status transitions by target status.",
		}, []string{"status"}),
		corruption: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "corruption_total",
			Help:      "Persisted snapshots discarded because they could not be decoded.",
		}, []string{"key"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "pending_deliveries",
			Help:      "Delivery timers currently armed.",
		}),
	}
	reg.MustRegister(m.created, m.transitions, m.corruption, m.pending)
	return m
}

func (m *OrderMetrics) IncCreated() {
	if m == nil || m.created == nil {
		return
	}
	m.created.Inc()
}

// IncTransition counts a move into status.
func (m *OrderMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncCorruption counts a discarded snapshot stored under key ("cart" or "orders").
func (m *OrderMetrics) IncCorruption(key string) {
	if m == nil || m.corruption == nil {
		return
	}
	m.corruption.WithLabelValues(normalizeLabel(key)).Inc()
}

// AddPending moves the armed-timer gauge by delta.
func (m *OrderMetrics) AddPending(delta float64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Add(delta)
}

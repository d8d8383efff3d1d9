// Package metrics holds the Prometheus collectors of both binaries.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bloodbank"

// Metrics provides observability for the ledger, the workflows and the HTTP layer
type Metrics struct {
	// Committed ledger operations by transaction type
	LedgerOperations *prometheus.CounterVec

	// Units moved by transaction type and blood group
	LedgerUnits *prometheus.CounterVec

	// Current stock per blood group, set from committed values
	StockUnits *prometheus.GaugeVec

	// Workflow transitions by entity and resulting status
	WorkflowTransitions *prometheus.CounterVec

	// Operations rejected by a domain rule, by kind
	DomainRejections *prometheus.CounterVec

	HTTPRequestDuration *prometheus.HistogramVec

	// Outbox messages published or failed by the event processor
	OutboxPublished *prometheus.CounterVec

	// Events projected into the activity log by outcome
	EventsProjected *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LedgerOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Committed stock ledger operations by type",
		}, []string{"type"}),

		LedgerUnits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_units_total",
			Help:      "Blood units moved by the ledger by type and blood group",
		}, []string{"type", "blood_group"}),

		StockUnits: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stock_units",
			Help:      "Units currently in stock per blood group",
		}, []string{"blood_group"}),

		WorkflowTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Request and donation workflow transitions by entity and status",
		}, []string{"entity", "status"}),

		DomainRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_rejections_total",
			Help:      "Operations refused by a domain rule, by error kind",
		}, []string{"kind"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status code",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),

		OutboxPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_messages_total",
			Help:      "Outbox messages handled by the poller by outcome",
		}, []string{"outcome"}),

		EventsProjected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_projected_total",
			Help:      "Domain events projected into the activity log by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveLedger records a committed ledger operation
func (m *Metrics) ObserveLedger(txnType, group string, units int) {
	if m != nil {
		m.LedgerOperations.WithLabelValues(txnType).Inc()
		m.LedgerUnits.WithLabelValues(txnType, group).Add(float64(units))
	}
}

// SetStock publishes a committed stock level
func (m *Metrics) SetStock(group string, units int) {
	if m != nil {
		m.StockUnits.WithLabelValues(group).Set(float64(units))
	}
}

func (m *Metrics) IncrementTransition(entity, status string) {
	if m != nil {
		m.WorkflowTransitions.WithLabelValues(entity, status).Inc()
	}
}

func (m *Metrics) IncrementRejection(kind string) {
	if m != nil {
		m.DomainRejections.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutbox(outcome string) {
	if m != nil {
		m.OutboxPublished.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementProjected(outcome string) {
	if m != nil {
		m.EventsProjected.WithLabelValues(outcome).Inc()
	}
}

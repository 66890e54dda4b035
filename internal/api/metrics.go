package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/walidbouh09/tradesense/internal/events"
)

// Metrics exposes prometheus counters fed from the event bus, so the
// engine and worker stay free of metrics plumbing.
type Metrics struct {
	registry *prometheus.Registry

	tradesProcessed   prometheus.Counter
	equityUpdates     prometheus.Counter
	statusTransitions *prometheus.CounterVec
	riskAlerts        *prometheus.CounterVec
}

// NewMetrics creates and registers the metric set on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		tradesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesense_trades_processed_total",
			Help: "Trades accepted by the challenge engine",
		}),
		equityUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesense_equity_updates_total",
			Help: "EquityUpdated events published",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesense_status_transitions_total",
			Help: "Challenge status transitions by new status",
		}, []string{"new_status"}),
		riskAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesense_risk_alerts_total",
			Help: "Risk alerts published by severity",
		}, []string{"severity"}),
	}

	registry.MustRegister(m.tradesProcessed, m.equityUpdates, m.statusTransitions, m.riskAlerts)
	return m
}

// Observe subscribes the metric handlers on the bus. High priority so
// counters reflect events even when later handlers fail.
func (m *Metrics) Observe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeEquityUpdated, func(e events.Event) error {
		m.tradesProcessed.Inc()
		m.equityUpdates.Inc()
		return nil
	}, 100)

	bus.Subscribe(events.EventTypeChallengeStatusChanged, func(e events.Event) error {
		if evt, ok := e.(*events.ChallengeStatusChangedEvent); ok {
			m.statusTransitions.WithLabelValues(string(evt.NewStatus)).Inc()
		}
		return nil
	}, 100)

	bus.Subscribe(events.EventTypeRiskAlert, func(e events.Event) error {
		if evt, ok := e.(*events.RiskAlertEvent); ok {
			m.riskAlerts.WithLabelValues(string(evt.Severity)).Inc()
		}
		return nil
	}, 100)
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the Prometheus collectors for the auth surface.
type metrics struct {
	registry *prometheus.Registry

	gateDecisions *prometheus.CounterVec
	loginAttempts *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sylva",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Access gate decisions by outcome.",
		}, []string{"outcome"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sylva",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.gateDecisions, m.loginAttempts)
	return m
}

func (m *metrics) observeGate(outcome Outcome) {
	m.gateDecisions.WithLabelValues(outcome.String()).Inc()
}

func (m *metrics) observeLogin(result string) {
	m.loginAttempts.WithLabelValues(result).Inc()
}

// Handler serves the /metrics scrape endpoint for this registry only.
func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package events

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fogcore"

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	AuthAttempts    *prometheus.CounterVec
	AccessDecisions *prometheus.CounterVec
	Registrations   *prometheus.CounterVec
	GrantsSynced    *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// Registering twice on the same registry panics, so tests should pass a
// fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Device authentication attempts by result.",
		}, []string{"result"}),
		AccessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "RFID access decisions by reason.",
		}, []string{"reason"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_registrations_total",
			Help:      "Device sign-up attempts by result.",
		}, []string{"result"}),
		GrantsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_grants_total",
			Help:      "Grants fetched from the hotel backend by outcome.",
		}, []string{"outcome"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events discarded because the publish queue was full.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	reg.MustRegister(
		m.AuthAttempts,
		m.AccessDecisions,
		m.Registrations,
		m.GrantsSynced,
		m.EventsDropped,
		m.RequestDuration,
	)
	return m
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// RegistrationFailed counts a rejected sign-up.
func (m *Metrics) RegistrationFailed(result string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(result).Inc()
}

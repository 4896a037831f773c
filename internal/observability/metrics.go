package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuetime/reservations/internal/domain"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SubmittedTotal     prometheus.Counter
	TransitionsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reservations",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		SubmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reservations",
			Name:      "submitted_total",
			Help:      "Reservation requests stored.",
		}),

		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Name:      "transitions_total",
			Help:      "Approve and reject attempts by outcome.",
		}, []string{"action", "result"}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Name:      "notifications_total",
			Help:      "Email delivery attempts by kind and outcome.",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SubmittedTotal,
		m.TransitionsTotal,
		m.NotificationsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ReservationSubmitted() {
	m.SubmittedTotal.Inc()
}

func (m *Metrics) TransitionFinished(action domain.Action, result string) {
	m.TransitionsTotal.WithLabelValues(string(action), result).Inc()
}

func (m *Metrics) NotificationSent(kind string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.NotificationsTotal.WithLabelValues(kind, result).Inc()
}

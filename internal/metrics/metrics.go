// Package metrics exposes Prometheus collectors for the HTTP surface and the authorization gate.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request and authorization metrics.
type Collector struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	authz         *prometheus.CounterVec
	sessionsSwept prometheus.Counter
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_http_requests_total",
			Help: "HTTP responses by route, method and status code.",
		}, []string{"method", "route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agenda_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authz: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_authz_decisions_total",
			Help: "Authorization decisions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agenda_sessions_swept_total",
			Help: "Expired sessions removed by the sweeper.",
		}),
	}

	reg.MustRegister(c.requests, c.latency, c.authz, c.sessionsSwept)
	return c
}

func (c *Collector) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthzDecision counts one gate decision.
func (c *Collector) RecordAuthzDecision(operation, outcome string) {
	c.authz.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordSessionsSwept(count int64) {
	if count > 0 {
		c.sessionsSwept.Add(float64(count))
	}
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

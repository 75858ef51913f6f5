// Package metrics exposes prometheus collectors for the API.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "takharruj"

// Collector groups the app's metrics on a private registry.
type Collector struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	violations  *prometheus.CounterVec
	submissions prometheus.Counter
	rateLimited prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_transitions_total",
			Help:      "Committed proposal status changes by target status.",
		}, []string{"status"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_violations_total",
			Help:      "Rejected lifecycle operations by violation code.",
		}, []string{"code"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_submissions_total",
			Help:      "Accepted proposal submissions.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_submissions_throttled_total",
			Help:      "Submissions refused by the rate limiter.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		c.requests, c.transitions, c.violations, c.submissions, c.rateLimited,
	)
	return c
}

func (c *Collector) ObserveRequest(method, route string, code int) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

func (c *Collector) ObserveTransition(status string) { c.transitions.WithLabelValues(status).Inc() }

func (c *Collector) ObserveViolation(code string) { c.violations.WithLabelValues(code).Inc() }

func (c *Collector) ObserveSubmission() { c.submissions.Inc() }

func (c *Collector) ObserveRateLimited() { c.rateLimited.Inc() }

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Package metrics exposes Prometheus collectors for provider calls,
// notifications and the HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "triquery"

// Registry holds every triquery collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	QueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Total queries fanned out to the providers",
	})
	ProviderCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Provider calls by provider and outcome",
	}, []string{"provider", "outcome"})
	ProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_latency_seconds",
		Help:      "Provider call latency in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider"})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Chat notifications by backend and outcome",
	}, []string{"backend", "outcome"})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"route", "code"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		QueriesTotal,
		ProviderCalls,
		ProviderLatency,
		Notifications,
		HTTPRequests,
	)
}

// ObserveProvider records one settled provider call.
func ObserveProvider(provider string, success bool, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	ProviderCalls.WithLabelValues(provider, outcome).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveNotification records one notification attempt.
func ObserveNotification(backend string, sent bool) {
	outcome := "sent"
	if !sent {
		outcome = "failed"
	}
	Notifications.WithLabelValues(backend, outcome).Inc()
}

// Handler renders the registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

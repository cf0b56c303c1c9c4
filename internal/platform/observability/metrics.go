package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spokeworks",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route, and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	settlementOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spokeworks",
		Subsystem: "payments",
		Name:      "settlements_total",
		Help:      "Payment settlement attempts by outcome.",
	}, []string{"outcome"})

	orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spokeworks",
		Subsystem: "orders",
		Name:      "status_transitions_total",
		Help:      "Service order status transitions by target status.",
	}, []string{"to_status"})
)

func observeRequest(method, route string, status int, latency time.Duration) {
	requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}

// ObserveSettlement records the outcome of a settlement attempt.
func ObserveSettlement(outcome string) {
	settlementOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveOrderTransition records a committed order status transition.
func ObserveOrderTransition(toStatus string) {
	orderTransitions.WithLabelValues(toStatus).Inc()
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

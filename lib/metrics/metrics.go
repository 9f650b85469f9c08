// Package metrics exposes wgadmin's Prometheus metrics.
//
// All collectors live in a private registry so that tests and embedders do
// not collide with the global default registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wgadmin"

// Registry holds every wgadmin collector.
var Registry = prometheus.NewRegistry()

var (
	// OperationsTotal counts engine operations by name and result.
	OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Engine operations by operation and result.",
	}, []string{"operation", "result"})

	// CommandsTotal counts external tool invocations by tool and outcome
	// (ok, failed, unavailable, canceled).
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "External command invocations by command and outcome.",
	}, []string{"command", "outcome"})

	// CommandDuration tracks how long external tools take.
	CommandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Duration of external command invocations.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"command"})

	// PersistFailures counts model writes that failed after an in-memory change.
	PersistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_failures_total",
		Help:      "Model flushes to durable storage that failed.",
	})

	// Servers is the number of declared servers.
	Servers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "servers",
		Help:      "Number of declared servers.",
	})

	// Peers is the number of declared peers across all servers.
	Peers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "peers",
		Help:      "Number of declared peers across all servers.",
	})

	// BreakerState is the state of each tool's circuit breaker
	// (0=closed, 1=open, 2=half-open).
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open).",
	}, []string{"breaker"})

	// BreakerTrips counts how often each breaker opened.
	BreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_trips_total",
		Help:      "Times a circuit breaker opened.",
	}, []string{"breaker"})

	// RateLimited counts HTTP requests rejected by the rate limiter.
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "HTTP requests rejected by the rate limiter.",
	})

	// HTTPRequests counts API requests by method, route pattern and status.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration tracks API request latency by route pattern.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	startTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "start_time_seconds",
		Help:      "Unix time the process started.",
	})
)

func init() {
	Registry.MustRegister(
		OperationsTotal,
		CommandsTotal,
		CommandDuration,
		PersistFailures,
		Servers,
		Peers,
		BreakerState,
		BreakerTrips,
		RateLimited,
		HTTPRequests,
		HTTPDuration,
		startTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveOperation counts one engine operation. A nil error is "ok".
func ObserveOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordStartTime stores the process start time.
func RecordStartTime() {
	startTime.Set(float64(time.Now().Unix()))
}

// Handler returns an HTTP handler that serves the registry in the
// Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

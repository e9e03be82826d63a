// Package metrics exposes Prometheus collectors for the HTTP surface and the
// ledger state machine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wallet"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	deposits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "deposits_total",
			Help:      "Deposit initializations by outcome.",
		},
		[]string{"outcome"},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Transfers by outcome.",
		},
		[]string{"outcome"},
	)

	movedAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credited_minor_units_total",
			Help:      "Minor units credited to wallets, by source.",
		},
		[]string{"source"},
	)

	reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "reconciliations_total",
			Help:      "Gateway callbacks by reconciliation outcome.",
		},
		[]string{"outcome"},
	)

	apiKeys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "api_key_operations_total",
			Help:      "API key lifecycle operations by kind and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	sweptDeposits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "stale_deposits_failed_total",
			Help:      "Pending deposits failed by the sweeper.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		deposits,
		transfers,
		movedAmount,
		reconciliations,
		apiKeys,
		sweptDeposits,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request count and latency per matched gin route.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordDeposit counts a deposit initialization outcome (initialized, gateway_failed, rejected).
func RecordDeposit(outcome string) {
	deposits.WithLabelValues(outcome).Inc()
}

// RecordTransfer counts a transfer outcome and, on success, the moved amount.
func RecordTransfer(outcome string, amount int64) {
	transfers.WithLabelValues(outcome).Inc()
	if outcome == "success" && amount > 0 {
		movedAmount.WithLabelValues("transfer").Add(float64(amount))
	}
}

// RecordReconciliation counts a webhook outcome and, when credited, the amount.
func RecordReconciliation(outcome string, credited int64) {
	reconciliations.WithLabelValues(outcome).Inc()
	if credited > 0 {
		movedAmount.WithLabelValues("deposit").Add(float64(credited))
	}
}

// RecordAPIKey counts an API key lifecycle operation.
func RecordAPIKey(operation, outcome string) {
	apiKeys.WithLabelValues(operation, outcome).Inc()
}

// RecordSweep counts deposits failed by the stale deposit sweeper.
func RecordSweep(n int64) {
	if n > 0 {
		sweptDeposits.Add(float64(n))
	}
}

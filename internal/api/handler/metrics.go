package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casetrace_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casetrace_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	anchorSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casetrace_anchor_submissions_total",
		Help: "Total ledger anchor submissions by network and outcome.",
	}, []string{"network", "outcome"})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casetrace_verifications_total",
		Help: "Total on-chain verifications by network and result.",
	}, []string{"network", "result"})

	custodyEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casetrace_custody_events_total",
		Help: "Total custody events appended.",
	})

	ledgerConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "casetrace_ledger_connected",
		Help: "Whether the ledger network's node answered the last probe (1/0).",
	}, []string{"network"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func recordAnchorSubmission(network string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	anchorSubmissionsTotal.WithLabelValues(network, outcome).Inc()
}

func recordVerification(network string, verified bool) {
	result := "absent"
	if verified {
		result = "verified"
	}
	verificationsTotal.WithLabelValues(network, result).Inc()
}

func recordCustodyAppend() {
	custodyEventsTotal.Inc()
}

// RecordLedgerProbe records the outcome of one network health probe.
func RecordLedgerProbe(network string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	ledgerConnected.WithLabelValues(network).Set(v)
}

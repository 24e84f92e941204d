package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "sufihub"
	unmatchedRoute   = "unmatched"
)

// Labels are bounded: the route template rather than the raw path, the
// numeric status, and whether the caller was signed in.
var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route, status and caller kind.",
	}, []string{"method", "route", "status", "caller"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	requestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests currently being served.",
	})

	// Content listings and image uploads dominate the upper buckets.
	responseSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size by method and route.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, requestsInFlight, responseSize)
}

// Metrics records request counts, latency, the in-flight gauge and response
// sizes. Requests that matched no route share the "unmatched" label so
// scanners cannot mint new series. Mount it after Identity to get the
// caller label right.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		caller := "anonymous"
		if UserID(c) != "" {
			caller = "user"
		}
		m := c.Request.Method

		requestsTotal.WithLabelValues(m, route, strconv.Itoa(c.Writer.Status()), caller).Inc()
		requestDuration.WithLabelValues(m, route).Observe(time.Since(start).Seconds())
		if n := c.Writer.Size(); n >= 0 {
			responseSize.WithLabelValues(m, route).Observe(float64(n))
		}
	}
}

// Package metrics provides Prometheus instrumentation for the reservation engine.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route pattern, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservationengine",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reservationengine",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// BookingConfirmsTotal counts confirm attempts by outcome (confirmed,
	// tentative, error).
	BookingConfirmsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservationengine",
			Name:      "booking_confirms_total",
			Help:      "Total booking confirm attempts by outcome.",
		},
		[]string{"tenant", "outcome"},
	)

	// BookingCancelsTotal counts cancel attempts by outcome (cancelled, error).
	BookingCancelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservationengine",
			Name:      "booking_cancels_total",
			Help:      "Total booking cancel attempts by outcome.",
		},
		[]string{"tenant", "outcome"},
	)

	// NotificationDispatchTotal counts notification send attempts by channel and result.
	NotificationDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservationengine",
			Name:      "notification_dispatch_total",
			Help:      "Total notification dispatch attempts by channel and result.",
		},
		[]string{"channel", "result"},
	)

	// WebhookVerificationsTotal counts inbound webhook signature checks by result.
	WebhookVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservationengine",
			Name:      "webhook_verifications_total",
			Help:      "Total inbound webhook signature verifications by result.",
		},
		[]string{"provider", "result"},
	)

	// OutboxRelayLagSeconds observes the age of an event at the moment it is published.
	OutboxRelayLagSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reservationengine",
			Name:      "outbox_relay_lag_seconds",
			Help:      "Seconds between outbox event creation and publish.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		BookingConfirmsTotal,
		BookingCancelsTotal,
		NotificationDispatchTotal,
		WebhookVerificationsTotal,
		OutboxRelayLagSeconds,
	)
}

// Middleware returns a gin middleware that records HTTP request count and latency.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus scrape handler for the /metrics route.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

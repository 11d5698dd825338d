// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicketsIssued counts successful ticket issuances (including re-issues).
	TicketsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkin_tickets_issued_total",
		Help: "Tickets issued, including re-issues that revoke an earlier ticket.",
	})

	// Redemptions counts check-in attempts by outcome kind.
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_redemptions_total",
		Help: "Ticket redemption attempts by outcome.",
	}, []string{"outcome"})

	// EmailsSent counts ticket emails by delivery status.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_emails_sent_total",
		Help: "Ticket emails by delivery status.",
	}, []string{"status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkin_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

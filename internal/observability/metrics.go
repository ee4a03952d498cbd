package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of HTTP requests processed by the messaging service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	messagesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_messages_created_total",
			Help: "Total number of messages created.",
		},
	)
	messageEditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_message_edits_total",
			Help: "Total number of message edit requests, by whether the body changed.",
		},
		[]string{"changed"},
	)
	accountCleanupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_account_cleanups_total",
			Help: "Total number of account cascade cleanups, by outcome.",
		},
		[]string{"outcome"},
	)
	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesCreatedTotal,
		messageEditsTotal,
		accountCleanupsTotal,
		rateLimitedTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncMessageCreated() {
	messagesCreatedTotal.Inc()
}

func IncMessageEdit(changed bool) {
	messageEditsTotal.WithLabelValues(strconv.FormatBool(changed)).Inc()
}

func IncAccountCleanup(outcome string) {
	accountCleanupsTotal.WithLabelValues(outcome).Inc()
}

func IncRateLimited() {
	rateLimitedTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

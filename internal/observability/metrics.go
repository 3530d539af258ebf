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
			Name: "quix_http_requests_total",
			Help: "Total number of HTTP requests processed by the messaging service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quix_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quix_ws_active_connections",
			Help: "Number of active gateway connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quix_ws_events_total",
			Help: "Total number of gateway events by name.",
		},
		[]string{"event"},
	)
	bridgeRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quix_bridge_publish_retries_total",
			Help: "Total number of fan-out bridge publish retries.",
		},
		[]string{"routing_key"},
	)
	bridgeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quix_bridge_publish_failures_total",
			Help: "Total number of fan-out bridge publishes dropped after retry exhaustion.",
		},
		[]string{"routing_key"},
	)
	typingUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quix_typing_updates_total",
			Help: "Total number of typing-state upserts.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		bridgeRetriesTotal,
		bridgeFailuresTotal,
		typingUpdatesTotal,
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

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncBridgeRetry(routingKey string) {
	bridgeRetriesTotal.WithLabelValues(routingKey).Inc()
}

func IncBridgeFailure(routingKey string) {
	bridgeFailuresTotal.WithLabelValues(routingKey).Inc()
}

func IncTypingUpdate() {
	typingUpdatesTotal.Inc()
}

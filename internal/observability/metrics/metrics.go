package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	WebhooksReceived  *prometheus.CounterVec
	WebhooksDuplicate *prometheus.CounterVec
	PaymentsConfirmed *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealdesk_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dealdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		WebhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealdesk_webhooks_received_total",
			Help: "Webhook deliveries by provider and outcome.",
		}, []string{"provider", "outcome"}),
		WebhooksDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealdesk_webhooks_duplicate_total",
			Help: "Replayed webhook deliveries dropped by dedup.",
		}, []string{"provider"}),
		PaymentsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealdesk_payments_confirmed_total",
			Help: "Payments confirmed by provider.",
		}, []string{"provider"}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpLatency,
		m.WebhooksReceived,
		m.WebhooksDuplicate,
		m.PaymentsConfirmed,
	)
	return m
}

// Middleware records per-route counters and latency. Route template
// (not the raw path) keys the series so ids don't explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)

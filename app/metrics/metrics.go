package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "razorpay_gateway"

const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultInvalid   = "invalid"
	ResultRejected  = "rejected"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
	ResultIgnored   = "ignored"
)

// Collectors groups the gateway's Prometheus collectors. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	registry *prometheus.Registry

	OrdersCreated        *prometheus.CounterVec
	PaymentVerifications *prometheus.CounterVec
	Webhooks             *prometheus.CounterVec
	ProviderDuration     *prometheus.HistogramVec
}

func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Order creation attempts by result.",
		}, []string{"result"}),
		PaymentVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifications_total",
			Help:      "Checkout signature verifications by result.",
		}, []string{"result"}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by event type and result.",
		}, []string{"event", "result"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of Razorpay API calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.OrdersCreated,
		c.PaymentVerifications,
		c.Webhooks,
		c.ProviderDuration,
	)
	return c
}

func (c *Collectors) OrderCreated(result string) {
	if c == nil {
		return
	}
	c.OrdersCreated.WithLabelValues(result).Inc()
}

func (c *Collectors) PaymentVerified(result string) {
	if c == nil {
		return
	}
	c.PaymentVerifications.WithLabelValues(result).Inc()
}

func (c *Collectors) Webhook(event, result string) {
	if c == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	c.Webhooks.WithLabelValues(event, result).Inc()
}

func (c *Collectors) ProviderRequest(operation, result string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.ProviderDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}

// Handler serves the exposition format for this registry only.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

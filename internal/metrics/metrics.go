package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Consume outcomes recorded by EventConsumed.
const (
	OutcomeProcessed    = "processed"
	OutcomeDuplicate    = "duplicate"
	OutcomeRetried      = "retried"
	OutcomeDeadLettered = "dead_lettered"
)

// Metrics owns one registry per process. A nil *Metrics is valid and records
// nothing, which keeps unit tests free of registry setup.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	eventsPublished   *prometheus.CounterVec
	publishFailures   *prometheus.CounterVec
	eventsConsumed    *prometheus.CounterVec
	ordersCreated     prometheus.Counter
	orderFailures     *prometheus.CounterVec
	priceLookup       *prometheus.HistogramVec
	outboxBacklogSeen prometheus.Gauge
}

func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "shopflow_http_requests_total",
			Help:        "HTTP requests handled, by route and status code.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "shopflow_http_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "shopflow_events_published_total",
			Help:        "Outbox messages relayed to Kafka.",
			ConstLabels: constLabels,
		}, []string{"topic"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "shopflow_events_publish_failures_total",
			Help:        "Outbox relay attempts that failed.",
			ConstLabels: constLabels,
		}, []string{"topic"}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "shopflow_events_consumed_total",
			Help:        "Kafka messages consumed, by outcome.",
			ConstLabels: constLabels,
		}, []string{"topic", "outcome"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "shopflow_orders_created_total",
			Help:        "Orders committed.",
			ConstLabels: constLabels,
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "shopflow_order_creation_failures_total",
			Help:        "Order creations rejected, by error kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		priceLookup: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "shopflow_price_lookup_duration_seconds",
			Help:        "Catalog price lookup latency.",
			ConstLabels: constLabels,
			Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"result"}),
		outboxBacklogSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "shopflow_outbox_batch_size",
			Help:        "Pending outbox rows claimed by the last relay poll.",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.eventsPublished,
		m.publishFailures,
		m.eventsConsumed,
		m.ordersCreated,
		m.orderFailures,
		m.priceLookup,
		m.outboxBacklogSeen,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency keyed by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) EventPublished(topic string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(topic).Inc()
}

func (m *Metrics) EventPublishFailed(topic string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(topic).Inc()
}

func (m *Metrics) OutboxBatch(size int) {
	if m == nil {
		return
	}
	m.outboxBacklogSeen.Set(float64(size))
}

func (m *Metrics) EventConsumed(topic, outcome string) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(topic, outcome).Inc()
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderCreationFailed(kind string) {
	if m == nil {
		return
	}
	m.orderFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObservePriceLookup(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.priceLookup.WithLabelValues(result).Observe(d.Seconds())
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insect"

type Metrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	externalCallsTotal   *prometheus.CounterVec
	externalCallDuration *prometheus.HistogramVec
	classificationsTotal *prometheus.CounterVec
	audioCleanupRemoved  prometheus.Counter
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		service:  service,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"service", "method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "http",
				Name:        "in_flight_requests",
				Help:        "Number of in-flight HTTP requests.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		externalCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "calls_total",
				Help:      "Calls to external AI services by operation and outcome.",
			},
			[]string{"service", "operation", "status"},
		),
		externalCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "call_duration_seconds",
				Help:      "External AI call duration including retries.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"service", "operation"},
		),
		classificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "classifier",
				Name:      "classifications_total",
				Help:      "Completed classifications by endpoint and cache outcome.",
			},
			[]string{"service", "endpoint", "cache"},
		),
		audioCleanupRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "audio",
				Name:        "cleanup_removed_total",
				Help:        "Audio files removed by the cleanup sweep.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.externalCallsTotal,
		m.externalCallDuration,
		m.classificationsTotal,
		m.audioCleanupRemoved,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GinMiddleware records request counts and latency labelled by route
// template, so path parameters do not explode cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(m.service, c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(m.service, c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveExternalCall matches resilience.Observer.
func (m *Metrics) ObserveExternalCall(operation string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.externalCallsTotal.WithLabelValues(m.service, operation, status).Inc()
	m.externalCallDuration.WithLabelValues(m.service, operation).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordClassification(endpoint string, cached bool) {
	cache := "miss"
	if cached {
		cache = "hit"
	}
	m.classificationsTotal.WithLabelValues(m.service, endpoint, cache).Inc()
}

func (m *Metrics) RecordAudioCleanup(removed int) {
	if removed > 0 {
		m.audioCleanupRemoved.Add(float64(removed))
	}
}

// Package metrics exposes dashboard counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "subtrack"

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	toggles       *prometheus.CounterVec
	mounts        prometheus.Counter
	unmounts      *prometheus.CounterVec
	chartRenders  *prometheus.CounterVec
	chartDuration prometheus.Histogram
	exports       prometheus.Counter
	publishErrors prometheus.Counter
}

// New registers all collectors. activeSessions is sampled on every scrape.
func New(activeSessions func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_toggles_total",
			Help:      "Dashboard state changes by target (theme, ghost, subscription).",
		}, []string{"target"}),
		mounts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "views_mounted_total",
			Help:      "Dashboard views mounted.",
		}),
		unmounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "views_unmounted_total",
			Help:      "Dashboard views discarded by reason.",
		}, []string{"reason"}),
		chartRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_requests_total",
			Help:      "Chart requests by cache result.",
		}, []string{"cache"}),
		chartDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chart_render_seconds",
			Help:      "Time spent rendering SVG charts, cache misses only.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		exports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Workbooks exported.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Dashboard events that could not be published.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.toggles, m.mounts, m.unmounts,
		m.chartRenders, m.chartDuration, m.exports, m.publishErrors,
	)
	if activeSessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "views_active",
			Help:      "Dashboard views currently mounted.",
		}, activeSessions))
	}
	return m
}

// ObserveRequest matches trace.Observer.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) Toggle(target string) {
	m.toggles.WithLabelValues(target).Inc()
}

func (m *Metrics) Mounted() {
	m.mounts.Inc()
}

func (m *Metrics) Unmounted(reason string) {
	m.unmounts.WithLabelValues(reason).Inc()
}

// ChartServed records one chart response. d is only observed on a miss.
func (m *Metrics) ChartServed(cached bool, d time.Duration) {
	if cached {
		m.chartRenders.WithLabelValues("hit").Inc()
		return
	}
	m.chartRenders.WithLabelValues("miss").Inc()
	m.chartDuration.Observe(d.Seconds())
}

func (m *Metrics) Exported() {
	m.exports.Inc()
}

func (m *Metrics) PublishFailed() {
	m.publishErrors.Inc()
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Package metrics exposes Prometheus metrics for the HTTP API, backups
// and calendar exports.
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

const namespace = "nursepay"

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	backups        *prometheus.CounterVec
	backupLatency  *prometheus.HistogramVec
	icsExports     prometheus.Counter
	icsEvents      prometheus.Counter
	records        *prometheus.GaugeVec
}

// New registers every collector, plus the Go runtime and process ones.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "backup", Name: "runs_total",
			Help: "Backup uploads by target and result.",
		}, []string{"target", "result"}),
		backupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "backup", Name: "duration_seconds",
			Help:    "Backup upload and prune latency by target.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"target"}),
		icsExports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ics", Name: "exports_total",
			Help: "Calendar feeds rendered.",
		}),
		icsEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ics", Name: "events_total",
			Help: "Events written across all calendar feeds.",
		}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "records",
			Help: "Stored records by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestLatency, m.backups, m.backupLatency,
		m.icsExports, m.icsEvents, m.records,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency per chi route pattern, so
// ids in paths do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveBackup records one backup upload to a target.
func (m *Metrics) ObserveBackup(target string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.backups.WithLabelValues(target, result).Inc()
	m.backupLatency.WithLabelValues(target).Observe(d.Seconds())
}

// ObserveICSExport records one rendered calendar feed.
func (m *Metrics) ObserveICSExport(events int) {
	m.icsExports.Inc()
	m.icsEvents.Add(float64(events))
}

// SetRecordCounts publishes the number of stored records.
func (m *Metrics) SetRecordCounts(rates, missions int) {
	m.records.WithLabelValues("rate").Set(float64(rates))
	m.records.WithLabelValues("mission").Set(float64(missions))
}

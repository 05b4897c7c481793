package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/jobs"
)

const metricsNamespace = "mon_ecole"

// MetricsService owns a private Prometheus registry with HTTP, cache, timetable and
// background job collectors. A nil *MetricsService records nothing.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration    *prometheus.HistogramVec
	cacheLookups       *prometheus.HistogramVec
	cacheWrites        prometheus.Histogram
	timetableConflicts *prometheus.CounterVec
	timetableWrites    *prometheus.CounterVec
	auditJobs          *prometheus.CounterVec
}

// NewMetricsService registers the collectors, including the Go runtime and process ones.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: metricsNamespace}),
	)
	factory := promauto.With(registry)

	return &MetricsService{
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests by route template and status.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
		cacheLookups: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookup_seconds",
			Help:      "Membership cache lookups by result.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}, []string{"result"}),
		cacheWrites: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "write_seconds",
			Help:      "Membership cache writes.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		timetableConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "timetable",
			Name:      "conflicts_total",
			Help:      "Timetable writes rejected because a classroom or teacher slot was taken.",
		}, []string{"resource"}),
		timetableWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "timetable",
			Name:      "writes_total",
			Help:      "Accepted timetable entry writes.",
		}, []string{"operation"}),
		auditJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "audit",
			Name:      "jobs_total",
			Help:      "Audit log jobs by outcome.",
		}, []string{"status"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// WatchQueue exports the counters of a background queue as gauges labelled by queue name.
func (m *MetricsService) WatchQueue(name string, q *jobs.Queue) {
	if m == nil || q == nil {
		return
	}
	labels := prometheus.Labels{"queue": name}
	gauge := func(metric, help string, read func(jobs.Stats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "queue",
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return read(q.Stats()) })
	}
	m.registry.MustRegister(
		gauge("pending_jobs", "Jobs waiting in the buffer.", func(s jobs.Stats) float64 { return float64(s.Pending) }),
		gauge("succeeded_jobs", "Jobs handled successfully since start.", func(s jobs.Stats) float64 { return float64(s.Succeeded) }),
		gauge("failed_jobs", "Jobs that exhausted their retries.", func(s jobs.Stats) float64 { return float64(s.Failed) }),
		gauge("dropped_jobs", "Jobs refused because the buffer was full.", func(s jobs.Stats) float64 { return float64(s.Dropped) }),
	)
}

// ObserveHTTPRequest records one served request. route must be the route template, never
// the raw path.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(duration.Seconds())
}

// RecordTimetableConflict counts a rejected write. resource is CLASSROOM, TEACHER or
// UNKNOWN when the database could not tell.
func (m *MetricsService) RecordTimetableConflict(resource string) {
	if m == nil {
		return
	}
	if resource == "" {
		resource = "UNKNOWN"
	}
	m.timetableConflicts.WithLabelValues(resource).Inc()
}

// RecordTimetableWrite counts an accepted create, update, delete or import.
func (m *MetricsService) RecordTimetableWrite(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.timetableWrites.WithLabelValues(operation).Add(float64(n))
}

// RecordAuditJob counts audit jobs by outcome (written, failed, dropped).
func (m *MetricsService) RecordAuditJob(status string) {
	if m == nil {
		return
	}
	m.auditJobs.WithLabelValues(status).Inc()
}

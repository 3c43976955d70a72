package service

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-tenant-api/pkg/jobs"
)

// MetricsService owns the Prometheus registry for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	accessDecisions *prometheus.CounterVec
	auditOutcomes   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	accessDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_access_decisions_total",
		Help: "Resource access checks by kind and result",
	}, []string{"kind", "allowed", "reason"})

	auditOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_audit_outcomes_total",
		Help: "Activity audit emits by status and type",
	}, []string{"status", "activity_type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups, dbQueryDuration, accessDecisions, auditOutcomes, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		dbQueryDuration: dbQueryDuration,
		accessDecisions: accessDecisions,
		auditOutcomes:   auditOutcomes,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveAccessDecision counts a canAccess answer.
func (m *MetricsService) ObserveAccessDecision(kind string, allowed bool, reason string) {
	if m == nil {
		return
	}
	m.accessDecisions.WithLabelValues(kind, strconv.FormatBool(allowed), reason).Inc()
}

// ObserveAuditOutcome counts an audit emit by status.
func (m *MetricsService) ObserveAuditOutcome(status, activityType string) {
	if m == nil {
		return
	}
	if activityType == "" {
		activityType = "unknown"
	}
	m.auditOutcomes.WithLabelValues(status, activityType).Inc()
}

// RegisterQueue exports depth and drop counters for a worker queue.
func (m *MetricsService) RegisterQueue(q *jobs.Queue) {
	if m == nil || q == nil {
		return
	}
	labels := prometheus.Labels{"queue": q.Name()}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "job_queue_pending",
			Help:        "Jobs waiting in the queue buffer",
			ConstLabels: labels,
		}, func() float64 { return float64(q.Stats().Pending) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "job_queue_dropped_total",
			Help:        "Jobs rejected because the queue was full",
			ConstLabels: labels,
		}, func() float64 { return float64(q.Stats().Dropped) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "job_queue_failed_total",
			Help:        "Jobs that exhausted their retries",
			ConstLabels: labels,
		}, func() float64 { return float64(q.Stats().Failed) }),
	)
}

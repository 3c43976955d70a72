package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-tenant-api/pkg/jobs"
)

func TestMetricsCountDecisionsAndOutcomes(t *testing.T) {
	m := NewMetricsService()

	m.ObserveAccessDecision("student", false, "not_found")
	m.ObserveAccessDecision("student", false, "not_found")
	m.ObserveAuditOutcome("dropped", "")
	m.RecordCacheOperation(true, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.accessDecisions.WithLabelValues("student", "false", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditOutcomes.WithLabelValues("dropped", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
}

func TestMetricsHandlerExposesQueue(t *testing.T) {
	m := NewMetricsService()
	q := jobs.NewQueue("audit", func(context.Context, jobs.Job) error { return nil }, jobs.QueueConfig{BufferSize: 1})
	m.RegisterQueue(q)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `job_queue_pending{queue="audit"} 0`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveAccessDecision("student", true, "allowed")
		m.ObserveAuditOutcome("queued", "STAFF_HIRED")
		m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

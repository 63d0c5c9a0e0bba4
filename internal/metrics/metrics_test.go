package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAnalysis("weighted", time.Second, nil)
	m.IncPersistFailure()
	m.SetSubscribers(3)
	m.ObserveRefresh(time.Second, 2)
	m.SetBreakerState(1, true)
}

func TestObserveAnalysis(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveAnalysis("weighted", 10*time.Millisecond, nil)
	m.ObserveAnalysis("weighted", 10*time.Millisecond, errors.New("boom"))
	m.ObserveAnalysis("weighted", 10*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("weighted", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("weighted", "error")))
}

func TestHealth_DegradedWhenRedisRequiredAndDown(t *testing.T) {
	h := NewHealthStatus(true, false)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}

func TestHealth_HealthyWithoutDependencies(t *testing.T) {
	h := NewHealthStatus(false, false)
	h.SetSubscribers(2)
	report, code := h.Snapshot()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, 2, report.Subscribers)
}

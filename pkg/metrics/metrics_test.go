package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Monitor) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestPipelineMetrics(t *testing.T) {
	m := NewMonitor(time.Minute)
	pm := m.GetMetrics()

	pm.RunFinished("video", nil, 2*time.Second)
	pm.RunFinished("video", errors.New("analyze video"), time.Second)
	pm.ViolationFinished("video", "notified", "")
	pm.ViolationFinished("video", "failed", "frame extraction: frame read failed")
	pm.ViolationFinished("frame", "dropped", "no matching policy")
	pm.AlertCreated(3)

	body := scrape(t, m)
	assert.Contains(t, body, `safestack_pipeline_runs_total{kind="video",outcome="ok"} 1`)
	assert.Contains(t, body, `safestack_pipeline_runs_total{kind="video",outcome="error"} 1`)
	assert.Contains(t, body, `safestack_violations_total{kind="video",stage="notified"} 1`)
	assert.Contains(t, body, `safestack_step_failures_total{kind="video",step="frame extraction"} 1`)
	assert.Contains(t, body, `safestack_violations_total{kind="frame",stage="dropped"} 1`)
	assert.Contains(t, body, `safestack_alerts_created_total{level="3"} 1`)
}

func TestStepOf(t *testing.T) {
	assert.Equal(t, "create alert", stepOf("create alert: constraint failed"))
	assert.Equal(t, "missing required field", stepOf("missing required field"))
	assert.Equal(t, "unknown", stepOf(""))
}

func TestMonitorMiddlewareAndRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMonitor(time.Minute)

	r := gin.New()
	r.Use(MonitorMiddleware(m.GetMetrics()))
	r.GET("/videos/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	m.RegisterRoutes(r.Group("/monitor"))

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/videos/"+id, nil))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitor/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/videos/:id",status="404"} 2`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitor/system/latest", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"goroutines"`))
}

func TestSystemMonitorCollect(t *testing.T) {
	m := NewMetrics()
	sm := NewSystemMonitor(m, 10*time.Millisecond, "")
	stats := sm.Collect(context.Background())
	assert.Positive(t, stats.Goroutines)
	assert.Same(t, stats, sm.GetLatestStats())

	sm.Start()
	sm.Stop()
	sm.Stop()
}

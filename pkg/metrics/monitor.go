package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor 组合 Prometheus 指标和系统采样
type Monitor struct {
	metrics *Metrics
	system  *SystemMonitor
	started time.Time
}

func NewMonitor(sampleInterval time.Duration) *Monitor {
	m := NewMetrics()
	return &Monitor{
		metrics: m,
		system:  NewSystemMonitor(m, sampleInterval, ""),
		started: time.Now(),
	}
}

func (m *Monitor) Start() { m.system.Start() }
func (m *Monitor) Stop()  { m.system.Stop() }

func (m *Monitor) GetMetrics() *Metrics { return m.metrics }

// Handler 暴露 Prometheus 文本格式
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.metrics.Registry(), promhttp.HandlerOpts{})
}

// RegisterRoutes 注册监控路由
func (m *Monitor) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/system/latest", m.getLatestSystemStats)
	r.GET("/overview", m.getOverview)
}

func (m *Monitor) getLatestSystemStats(c *gin.Context) {
	stats := m.system.GetLatestStats()
	if stats == nil {
		stats = m.system.Collect(c.Request.Context())
	}
	c.JSON(http.StatusOK, stats)
}

func (m *Monitor) getOverview(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int64(time.Since(m.started).Seconds()),
		"system":         m.system.GetLatestStats(),
	})
}

func currentPID() int { return os.Getpid() }

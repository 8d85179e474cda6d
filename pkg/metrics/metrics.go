package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标管理器，所有指标注册在自己的 Registry 上
type Metrics struct {
	registry *prometheus.Registry

	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 流水线指标
	pipelineRuns         *prometheus.CounterVec
	pipelineRunDuration  *prometheus.HistogramVec
	pipelineViolations   *prometheus.CounterVec
	pipelineStepFailures *prometheus.CounterVec
	alertsCreated        *prometheus.CounterVec

	// 系统指标
	systemMemoryUsage *prometheus.GaugeVec
	systemCPUUsage    prometheus.Gauge
	systemGoroutines  prometheus.Gauge
}

// NewMetrics 创建指标管理器
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		pipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safestack_pipeline_runs_total",
				Help: "Pipeline runs by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		pipelineRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "safestack_pipeline_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"kind"},
		),
		pipelineViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safestack_violations_total",
				Help: "Candidate violations by the stage they finished in",
			},
			[]string{"kind", "stage"},
		),
		pipelineStepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safestack_step_failures_total",
				Help: "Per-violation step failures",
			},
			[]string{"kind", "step"},
		),
		alertsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safestack_alerts_created_total",
				Help: "Alerts created, by policy level",
			},
			[]string{"level"},
		),

		systemMemoryUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_memory_usage_bytes",
				Help: "System memory usage in bytes",
			},
			[]string{"type"},
		),
		systemCPUUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "system_cpu_usage_percent",
			Help: "System CPU usage percentage",
		}),
		systemGoroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "system_goroutines",
			Help: "Number of goroutines",
		}),
	}

	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.httpRequestsTotal, m.httpRequestDuration,
		m.pipelineRuns, m.pipelineRunDuration, m.pipelineViolations, m.pipelineStepFailures, m.alertsCreated,
		m.systemMemoryUsage, m.systemCPUUsage, m.systemGoroutines,
	)
	return m
}

// Registry 供 promhttp 和其他组件注册指标
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RunFinished records one pipeline run.
func (m *Metrics) RunFinished(kind string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.pipelineRuns.WithLabelValues(kind, outcome).Inc()
	m.pipelineRunDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ViolationFinished records where a candidate violation stopped. Failed
// violations are also counted by the step named in reason.
func (m *Metrics) ViolationFinished(kind, stage, reason string) {
	m.pipelineViolations.WithLabelValues(kind, stage).Inc()
	if stage == "failed" {
		m.pipelineStepFailures.WithLabelValues(kind, stepOf(reason)).Inc()
	}
}

// AlertCreated counts an alert from any source, pipeline or manual.
func (m *Metrics) AlertCreated(level int) {
	m.alertsCreated.WithLabelValues(strconv.Itoa(level)).Inc()
}

// stepOf takes the "step: detail" prefix of a failure reason.
func stepOf(reason string) string {
	for i := 0; i < len(reason); i++ {
		if reason[i] == ':' {
			return reason[:i]
		}
	}
	if reason == "" {
		return "unknown"
	}
	return reason
}

// SetSystemMemoryUsage 设置系统内存使用量
func (m *Metrics) SetSystemMemoryUsage(memoryType string, bytes uint64) {
	m.systemMemoryUsage.WithLabelValues(memoryType).Set(float64(bytes))
}

// SetSystemCPUUsage 设置系统CPU使用率
func (m *Metrics) SetSystemCPUUsage(percentage float64) {
	m.systemCPUUsage.Set(percentage)
}

// SetSystemGoroutines 设置goroutine数量
func (m *Metrics) SetSystemGoroutines(count int) {
	m.systemGoroutines.Set(float64(count))
}

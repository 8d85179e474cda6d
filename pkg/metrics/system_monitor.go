package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStats 系统统计信息
type SystemStats struct {
	Timestamp        time.Time `json:"timestamp"`
	CPUPercent       float64   `json:"cpu_percent"`
	MemoryTotal      uint64    `json:"memory_total"`
	MemoryUsed       uint64    `json:"memory_used"`
	MemoryPercent    float64   `json:"memory_percent"`
	DiskFree         uint64    `json:"disk_free"`
	DiskUsagePercent float64   `json:"disk_usage_percent"`
	ProcessRSS       uint64    `json:"process_rss"`
	Goroutines       int       `json:"goroutines"`
}

// SystemMonitor 定时采样主机与进程状态，写入 gauges 并保留最新一次结果
type SystemMonitor struct {
	metrics  *Metrics
	interval time.Duration
	diskPath string

	mu     sync.RWMutex
	latest *SystemStats
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSystemMonitor(m *Metrics, interval time.Duration, diskPath string) *SystemMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemMonitor{metrics: m, interval: interval, diskPath: diskPath}
}

func (sm *SystemMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	sm.cancel = cancel
	sm.done = make(chan struct{})
	go func() {
		defer close(sm.done)
		ticker := time.NewTicker(sm.interval)
		defer ticker.Stop()
		sm.Collect(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sm.Collect(ctx)
			}
		}
	}()
}

func (sm *SystemMonitor) Stop() {
	if sm.cancel == nil {
		return
	}
	sm.cancel()
	<-sm.done
	sm.cancel = nil
}

// Collect takes one sample. Individual probe failures leave their fields zero.
func (sm *SystemMonitor) Collect(ctx context.Context) *SystemStats {
	stats := &SystemStats{Timestamp: time.Now(), Goroutines: runtime.NumGoroutine()}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryTotal = vm.Total
		stats.MemoryUsed = vm.Used
		stats.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.UsageWithContext(ctx, sm.diskPath); err == nil {
		stats.DiskFree = du.Free
		stats.DiskUsagePercent = du.UsedPercent
	}
	if p, err := process.NewProcessWithContext(ctx, int32(currentPID())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			stats.ProcessRSS = mi.RSS
		}
	}

	if sm.metrics != nil {
		sm.metrics.SetSystemCPUUsage(stats.CPUPercent)
		sm.metrics.SetSystemMemoryUsage("used", stats.MemoryUsed)
		sm.metrics.SetSystemMemoryUsage("process_rss", stats.ProcessRSS)
		sm.metrics.SetSystemGoroutines(stats.Goroutines)
	}

	sm.mu.Lock()
	sm.latest = stats
	sm.mu.Unlock()
	return stats
}

// GetLatestStats 获取最新统计
func (sm *SystemMonitor) GetLatestStats() *SystemStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.latest
}

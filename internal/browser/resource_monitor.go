package browser

import (
	"runtime"
	"sync"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1024 * 1024

// ResourceConfig 资源限制配置
type ResourceConfig struct {
	ReserveMB    int64   `mapstructure:"reserve_mb"`    // 为系统保留的内存(MB)
	PopupMB      int64   `mapstructure:"popup_mb"`      // 单个弹窗的平均内存消耗(MB)
	MaxPopups    int     `mapstructure:"max_popups"`    // 绝对上限
	CPUThreshold float64 `mapstructure:"cpu_threshold"` // CPU使用率超过该值时减半, >=100 视为禁用
}

// DefaultResourceConfig 默认资源配置
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		ReserveMB:    1024,
		PopupMB:      150,
		MaxPopups:    16,
		CPUThreshold: 90,
	}
}

// ResourceSnapshot 系统资源快照
type ResourceSnapshot struct {
	TotalMemory     uint64  // 系统总内存(字节)
	AvailableMemory uint64  // 可用内存(字节)
	CPUPercent      float64 // CPU使用率(%)
	NumCPU          int     // 逻辑CPU数
}

// ResourceMonitor 系统资源监控器
// 根据可用内存和CPU负载计算同时打开的弹窗上限,实现 resolver.BatchLimiter
type ResourceMonitor struct {
	cfg ResourceConfig

	memory func() (*mem.VirtualMemoryStat, error)
	cpu    func() (float64, error)

	mu       sync.Mutex
	cached   int
	cachedAt time.Time
}

// NewResourceMonitor 创建资源监控器
func NewResourceMonitor(cfg ResourceConfig) *ResourceMonitor {
	if cfg.PopupMB <= 0 {
		cfg.PopupMB = DefaultResourceConfig().PopupMB
	}
	return &ResourceMonitor{
		cfg:    cfg,
		memory: mem.VirtualMemory,
		cpu:    cpuPercent,
	}
}

func cpuPercent() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, nil
	}
	return percentages[0], nil
}

// Snapshot 采样当前资源
func (m *ResourceMonitor) Snapshot() (ResourceSnapshot, error) {
	snap := ResourceSnapshot{NumCPU: runtime.NumCPU()}

	vm, err := m.memory()
	if err != nil {
		return snap, err
	}
	snap.TotalMemory = vm.Total
	snap.AvailableMemory = vm.Available

	if pct, err := m.cpu(); err == nil {
		snap.CPUPercent = pct
	} else {
		utils.Debugf("获取CPU使用率失败: %v", err)
	}
	return snap, nil
}

// MaxPopups 当前允许同时打开的弹窗数量
// 结果缓存5秒; 采样失败时返回0,表示不限制
func (m *ResourceMonitor) MaxPopups() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached > 0 && time.Since(m.cachedAt) < 5*time.Second {
		return m.cached
	}

	snap, err := m.Snapshot()
	if err != nil {
		utils.Warnf("获取系统内存失败,不限制批次大小: %v", err)
		return 0
	}

	limit := m.calculate(snap)
	m.cached = limit
	m.cachedAt = time.Now()
	return limit
}

func (m *ResourceMonitor) calculate(snap ResourceSnapshot) int {
	reserve := uint64(m.cfg.ReserveMB) * mb
	limit := 1
	if snap.AvailableMemory > reserve {
		limit = int((snap.AvailableMemory - reserve) / (uint64(m.cfg.PopupMB) * mb))
	}

	if m.cfg.CPUThreshold > 0 && m.cfg.CPUThreshold < 100 && snap.CPUPercent > m.cfg.CPUThreshold {
		utils.Warnf("CPU负载过高(当前%.1f%%),弹窗数量减半", snap.CPUPercent)
		limit /= 2
	}

	if m.cfg.MaxPopups > 0 && limit > m.cfg.MaxPopups {
		limit = m.cfg.MaxPopups
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

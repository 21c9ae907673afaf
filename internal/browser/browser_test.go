package browser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		name       string
		arg        string
		wantName   string
		wantValues []string
	}{
		{"无值参数", "--no-sandbox", "no-sandbox", nil},
		{"带值参数", "--disable-blink-features=AutomationControlled", "disable-blink-features", []string{"AutomationControlled"}},
		{"单横线", "-headless", "headless", nil},
		{"前后空白", "  --disable-webgl ", "disable-webgl", nil},
		{"值中含等号", "--proxy-server=http://a=b", "proxy-server", []string{"http://a=b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, values := ParseFlag(tt.arg)
			assert.Equal(t, tt.wantName, string(name))
			assert.Equal(t, tt.wantValues, values)
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(o *Options)
		wantErr bool
	}{
		{"默认配置", func(o *Options) {}, false},
		{"重试次数为0", func(o *Options) { o.OpenRetries = 0 }, true},
		{"重试次数过大", func(o *Options) { o.OpenRetries = 11 }, true},
		{"导航超时为0", func(o *Options) { o.NavigateTimeout = 0 }, true},
		{"负的重试间隔", func(o *Options) { o.RetryDelay = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			err := opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExistingExtensions(t *testing.T) {
	dir := t.TempDir()
	ext := filepath.Join(dir, "ublock")
	require.NoError(t, os.Mkdir(ext, 0755))
	file := filepath.Join(dir, "not-a-dir.crx")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	got := ExistingExtensions([]string{ext, filepath.Join(dir, "missing"), file})
	assert.Equal(t, []string{ext}, got)
	assert.Empty(t, ExistingExtensions(nil))
}

func TestRandomUserAgent(t *testing.T) {
	assert.Equal(t, "", RandomUserAgent(nil))
	assert.Equal(t, "only", RandomUserAgent([]string{"only"}))

	pool := DefaultOptions().UserAgents
	for i := 0; i < 20; i++ {
		assert.Contains(t, pool, RandomUserAgent(pool))
	}
}

func newTestMonitor(cfg ResourceConfig, available uint64, cpuPct float64, memErr error) *ResourceMonitor {
	m := NewResourceMonitor(cfg)
	m.memory = func() (*mem.VirtualMemoryStat, error) {
		if memErr != nil {
			return nil, memErr
		}
		return &mem.VirtualMemoryStat{Total: available * 2, Available: available}, nil
	}
	m.cpu = func() (float64, error) { return cpuPct, nil }
	return m
}

func TestResourceMonitor_MaxPopups(t *testing.T) {
	cfg := ResourceConfig{ReserveMB: 1024, PopupMB: 100, MaxPopups: 16, CPUThreshold: 90}

	tests := []struct {
		name      string
		available uint64
		cpu       float64
		want      int
	}{
		{"内存充足", 2024 * mb, 10, 10},
		{"受绝对上限约束", 8024 * mb, 10, 16},
		{"内存低于保留值", 512 * mb, 10, 1},
		{"CPU过载减半", 2024 * mb, 95, 5},
		{"减半后至少为1", 1124 * mb, 95, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(cfg, tt.available, tt.cpu, nil)
			assert.Equal(t, tt.want, m.MaxPopups())
		})
	}
}

func TestResourceMonitor_CPUThresholdDisabled(t *testing.T) {
	cfg := ResourceConfig{ReserveMB: 0, PopupMB: 100, CPUThreshold: 100}
	m := newTestMonitor(cfg, 1000*mb, 99, nil)
	assert.Equal(t, 10, m.MaxPopups())
}

func TestResourceMonitor_Cache(t *testing.T) {
	cfg := ResourceConfig{ReserveMB: 0, PopupMB: 100}
	m := newTestMonitor(cfg, 500*mb, 0, nil)
	assert.Equal(t, 5, m.MaxPopups())

	calls := 0
	m.memory = func() (*mem.VirtualMemoryStat, error) {
		calls++
		return &mem.VirtualMemoryStat{Available: 100 * mb}, nil
	}
	assert.Equal(t, 5, m.MaxPopups(), "缓存有效期内应返回缓存值")
	assert.Equal(t, 0, calls)

	m.cachedAt = time.Now().Add(-10 * time.Second)
	assert.Equal(t, 1, m.MaxPopups())
	assert.Equal(t, 1, calls)
}

func TestResourceMonitor_MemoryError(t *testing.T) {
	m := newTestMonitor(DefaultResourceConfig(), 0, 0, errors.New("no /proc"))
	assert.Equal(t, 0, m.MaxPopups(), "采样失败时不限制")

	_, err := m.Snapshot()
	assert.Error(t, err)
}

func TestResourceMonitor_Snapshot(t *testing.T) {
	m := newTestMonitor(DefaultResourceConfig(), 4096*mb, 42.5, nil)
	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(4096*mb), snap.AvailableMemory)
	assert.Equal(t, uint64(8192*mb), snap.TotalMemory)
	assert.Equal(t, 42.5, snap.CPUPercent)
	assert.Greater(t, snap.NumCPU, 0)
}

func TestSession_PopupTracking(t *testing.T) {
	s := NewSession(DefaultOptions(), nil)
	assert.Equal(t, 0, s.OpenPopups())

	// 未启动的会话关闭容器不应panic
	s.CloseContainer(nil)
	assert.Equal(t, 0, s.OpenPopups())
}

func TestLookupBrowser(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))

	got, ok := LookupBrowser(bin)
	assert.True(t, ok)
	assert.Equal(t, bin, got)

	_, ok = LookupBrowser(filepath.Join(t.TempDir(), "missing"))
	assert.False(t, ok)
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/RecoveryAshes/FcLinkcrack/internal/browser"
	"github.com/RecoveryAshes/FcLinkcrack/internal/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "检查运行环境",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.SetTitle("FcLinkcrack 环境检查")
			t.AppendHeader(table.Row{"检查项", "状态", "详情"})

			allOK := true
			check := func(name string, ok bool, detail string) {
				status := "✅"
				if !ok {
					status = "❌"
					allOK = false
				}
				t.AppendRow(table.Row{name, status, detail})
			}

			check("Go运行时", true, fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH))

			if bin, ok := browser.LookupBrowser(appConfig.Browser.Bin); ok {
				check("浏览器", true, bin)
			} else {
				t.AppendRow(table.Row{"浏览器", "⚠️", "未找到本地Chrome,首次启动时自动下载"})
			}

			exts := browser.ExistingExtensions(appConfig.Browser.Extensions)
			check("扩展", len(exts) == len(appConfig.Browser.Extensions), fmt.Sprintf("%d/%d 可用", len(exts), len(appConfig.Browser.Extensions)))

			monitor := browser.NewResourceMonitor(appConfig.Resource)
			if snap, err := monitor.Snapshot(); err != nil {
				check("系统资源", false, err.Error())
			} else {
				check("系统资源", true, fmt.Sprintf("内存 %.1f/%.1f GB 可用, CPU %.0f%% (%d核), 弹窗上限 %d",
					float64(snap.AvailableMemory)/(1<<30), float64(snap.TotalMemory)/(1<<30),
					snap.CPUPercent, snap.NumCPU, monitor.MaxPopups()))
			}

			if st, err := store.Open(cmd.Context(), appConfig.Store.Path); err != nil {
				check("数据库", false, err.Error())
			} else {
				containers, err := st.Containers(cmd.Context())
				st.Close()
				check("数据库", err == nil, fmt.Sprintf("%s (%d 个容器)", appConfig.Store.Path, len(containers)))
			}

			check("输出目录", writable(appConfig.Output.Dir), appConfig.Output.Dir)
			check("配置", appConfig.Validate() == nil, fmt.Sprintf("输出模式=%s, 批次=%d", appConfig.OutputMode(), appConfig.Resolver.BatchSize))

			t.Render()
			if !allOK {
				return fmt.Errorf("环境检查未通过")
			}
			return nil
		},
	}
}

// writable 目录可创建且可写
func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name)) == nil
}

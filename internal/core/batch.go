package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/browser"
	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Restarter 浏览器崩溃后重启, browser.Session 实现该接口
type Restarter interface {
	Restart() error
}

// BatchRunner 依次处理多个容器
type BatchRunner struct {
	runner        *Runner
	restarter     Restarter
	delay         time.Duration
	continueOnErr bool
	out           io.Writer
}

// BatchResult 单个容器的批量处理结果
type BatchResult struct {
	URL      string
	Success  bool
	Error    error
	Inserted int
	Resolved int
	Failed   int
	Duration float64
}

// BatchSummary 批量处理摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	TotalInserted int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchRunner 创建批量处理器, restarter 可以为nil
func NewBatchRunner(runner *Runner, restarter Restarter, cfg BatchConfig, out io.Writer) *BatchRunner {
	if out == nil {
		out = io.Discard
	}
	return &BatchRunner{
		runner:        runner,
		restarter:     restarter,
		delay:         cfg.Delay,
		continueOnErr: cfg.ContinueOnError,
		out:           out,
	}
}

// RunAll 按顺序处理URL列表
// 上下文取消时停止并返回已完成部分的摘要
func (b *BatchRunner) RunAll(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量处理: %d个容器", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}
	start := time.Now()

	var runErr error
	for i, containerURL := range urls {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		utils.Infof("==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", containerURL)

		result := b.runOne(ctx, containerURL)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.TotalInserted += result.Inserted
		} else {
			summary.FailCount++
			if models.IsPassFatal(result.Error) {
				utils.Errorf("❌ 容器已终止: %v", result.Error)
			} else {
				utils.Errorf("❌ 处理失败: %v", result.Error)
			}

			if errors.Is(result.Error, browser.ErrBrowserCrashed) && b.restarter != nil {
				utils.Warn("🔄 浏览器异常,正在重启...")
				if err := b.restarter.Restart(); err != nil {
					runErr = fmt.Errorf("重启浏览器失败: %w", err)
					break
				}
			}

			if !b.continueOnErr {
				utils.Warn("批量处理中止 (--continue-on-error=false)")
				break
			}
		}

		if i < len(urls)-1 && b.delay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个容器...", b.delay.Seconds())
			select {
			case <-ctx.Done():
			case <-time.After(b.delay):
			}
		}
	}

	summary.TotalDuration = time.Since(start).Seconds()
	b.printSummary(summary)
	return summary, runErr
}

func (b *BatchRunner) runOne(ctx context.Context, containerURL string) BatchResult {
	start := time.Now()
	result := BatchResult{URL: containerURL}

	res, err := b.runner.Run(ctx, containerURL)
	result.Duration = time.Since(start).Seconds()
	if err != nil {
		result.Error = err
		return result
	}

	stats := res.Report.Stats
	result.Success = true
	result.Inserted = stats.Inserted
	result.Resolved = stats.Resolved
	result.Failed = stats.Failed
	return result
}

// printSummary 打印批量处理摘要
func (b *BatchRunner) printSummary(summary *BatchSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(b.out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("📊 批量处理摘要")
	t.AppendHeader(table.Row{"#", "URL", "状态", "解析", "失败", "新写入", "耗时"})
	for i, r := range summary.Results {
		status := "✅"
		if !r.Success {
			status = "❌"
		}
		t.AppendRow(table.Row{i + 1, r.URL, status, r.Resolved, r.Failed, r.Inserted, fmt.Sprintf("%.1fs", r.Duration)})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("成功 %d / 失败 %d", summary.SuccessCount, summary.FailCount), "", "", "", summary.TotalInserted, fmt.Sprintf("%.1fs", summary.TotalDuration)})
	t.Render()

	for _, r := range summary.Results {
		if !r.Success {
			utils.Warnf("  - %s: %v", r.URL, r.Error)
		}
	}
}

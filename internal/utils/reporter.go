package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
)

// Reporter 解析报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器, 报告写入 <outputDir>/reports
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// Dir 报告目录
func (r *Reporter) Dir() string {
	return filepath.Join(r.outputDir, "reports")
}

// SavePassReport 保存单个容器的JSON报告 reports/<code>.json
func (r *Reporter) SavePassReport(report *models.PassReport) (string, error) {
	if err := os.MkdirAll(r.Dir(), 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	name := report.Container
	if name == "" {
		name = report.PassID
	}
	path := filepath.Join(r.Dir(), name+".json")

	data, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return path, nil
}

// LoadPassReport 读取JSON报告
func LoadPassReport(path string) (*models.PassReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取报告失败: %w", err)
	}
	var report models.PassReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("解析报告失败: %w", err)
	}
	return &report, nil
}

// RenderLinks 以表格形式输出链接
func RenderLinks(w io.Writer, links []models.ResolvedLink) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Provider", "Size", "Status", "Download URL", "Bypass URL"})
	bypassed := 0
	for i, link := range links {
		t.AppendRow(table.Row{i + 1, link.Title, link.Provider, link.Size, link.Status, link.DownloadURL, link.BypassURL})
		if link.HasBypass() {
			bypassed++
		}
	}
	t.AppendFooter(table.Row{"", "Total", len(links), "", "", "", fmt.Sprintf("%d bypass", bypassed)})
	t.Render()
}

// RenderPassStats 以表格形式输出单个容器的统计
func RenderPassStats(w io.Writer, info models.ContainerInfo, stats models.PassStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s (%s)", info.Title, info.Code))
	t.AppendRows([]table.Row{
		{"总大小", info.TotalSize},
		{"总行数 / 在线", fmt.Sprintf("%d / %d", stats.TotalRows, stats.Online)},
		{"匹配 / 跳过", fmt.Sprintf("%d / %d", stats.Matched, stats.Skipped)},
		{"解析成功 / 失败", fmt.Sprintf("%d / %d", stats.Resolved, stats.Failed)},
		{"绕过地址", stats.Bypassed},
		{"新写入", stats.Inserted},
		{"耗时", fmt.Sprintf("%.1fs", stats.Duration)},
	})
	t.Render()
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/FcLinkcrack/internal/core"
	"github.com/RecoveryAshes/FcLinkcrack/internal/snapshot"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <url|file.html>",
		Short: "不启动浏览器,静态读取容器页面的链接表格",
		Long: `静态读取容器页面,用于检查选择器和提供商过滤是否正确。
不会打开下载弹窗; 页面处于密码或验证码状态时只报告验证类型。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			info, statErr := os.Stat(target)
			isFile := statErr == nil && !info.IsDir()
			if err := ValidateProbeTarget(target, isFile); err != nil {
				return err
			}

			var doc *snapshot.Document
			if isFile {
				d, err := snapshot.LoadFile(target)
				if err != nil {
					return err
				}
				doc = d
			} else {
				headerManager, err := core.NewHeaderManager(appConfig.Headers, headers)
				if err != nil {
					return fmt.Errorf("HTTP头部配置无效: %w", err)
				}
				d, err := snapshot.NewFetcher(headerManager, appConfig.Browser.NavigateTimeout).Fetch(cmd.Context(), target)
				if err != nil {
					return err
				}
				doc = d
			}

			result, err := snapshot.Probe(cmd.Context(), doc, appConfig.Resolver, provider)
			if err != nil {
				return err
			}

			if len(result.Gates) > 0 {
				utils.Warnf("🔒 页面需要人工验证: %v", result.Gates)
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.SetTitle(fmt.Sprintf("%s (%s) | %s | 在线 %d/%d | %s",
				result.Info.Title, result.Info.Code, result.Info.TotalSize,
				result.Info.Online, result.Info.Total, strings.Join(result.Info.Providers, ", ")))
			t.AppendHeader(table.Row{"#", "Title", "Provider", "Size", "Status"})
			for _, c := range result.Candidates {
				t.AppendRow(table.Row{c.Index + 1, c.Title, c.Provider, c.Size, c.Status})
			}
			t.Render()
			return nil
		},
	}
}

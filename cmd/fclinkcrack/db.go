package main

import (
	"context"
	"fmt"
	"os"

	"github.com/RecoveryAshes/FcLinkcrack/internal/report"
	"github.com/RecoveryAshes/FcLinkcrack/internal/store"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "查看和导出已存储的链接",
	}
	cmd.AddCommand(newDBListCmd(), newDBExportCmd())
	return cmd
}

func newDBListCmd() *cobra.Command {
	var container string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "按容器列出已存储的链接",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := store.Open(ctx, appConfig.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			if container != "" {
				links, err := st.GetByContainer(ctx, container)
				if err != nil {
					return err
				}
				if len(links) == 0 {
					utils.Warnf("容器 %s 没有已存储的链接", container)
					return nil
				}
				utils.RenderLinks(os.Stdout, links)
				return nil
			}

			return listContainers(ctx, st)
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "只显示指定容器代码的链接")
	return cmd
}

func listContainers(ctx context.Context, st *store.Store) error {
	containers, err := st.Containers(ctx)
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		utils.Info("数据库为空")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Container", "Series", "Links", "Bypass", "Providers"})
	total := 0
	for i, c := range containers {
		t.AppendRow(table.Row{i + 1, c.Code, utils.NormalizeSeriesTitle(c.Title), c.Links, c.Bypassed, c.Providers})
		total += c.Links
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d 个容器", len(containers)), "", total})
	t.Render()
	return nil
}

func newDBExportCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "将数据库导出为Excel工作簿,不重新解析",
		RunE: func(cmd *cobra.Command, args []string) error {
			exportMode, err := report.ParseMode(mode)
			if err != nil {
				return err
			}
			if exportMode == report.ModeDB {
				return fmt.Errorf("导出模式只能是 all, individual 或 both")
			}

			ctx := cmd.Context()
			st, err := store.Open(ctx, appConfig.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			links, err := st.All(ctx)
			if err != nil {
				return err
			}
			if len(links) == 0 {
				utils.Info("数据库为空,没有可导出的链接")
				return nil
			}

			result, err := report.NewWriter(appConfig.Output.Dir).ExportAll(exportMode, links)
			if err != nil {
				return err
			}
			utils.Infof("✅ 导出完成: %d 个文件, 新增 %d 行", len(result.Files), result.Added)
			for _, f := range result.Files {
				utils.Infof("  - %s", f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "all", "导出模式 (all|individual|both)")
	return cmd
}

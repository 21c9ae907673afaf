package core

import (
	"context"
	"fmt"
	"io"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/report"
	"github.com/RecoveryAshes/FcLinkcrack/internal/resolver"
	"github.com/RecoveryAshes/FcLinkcrack/internal/store"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
)

// ContainerOpener 打开和关闭容器页面, browser.Session 实现该接口
type ContainerOpener interface {
	OpenContainer(ctx context.Context, containerURL string) (resolver.Page, error)
	CloseContainer(page resolver.Page)
}

// ContainerResult 单个容器的处理结果
type ContainerResult struct {
	URL        string
	Report     *models.PassReport
	Links      []models.ResolvedLink
	Files      []string // 导出的工作簿
	ReportPath string
}

// Runner 处理单个容器: 打开 -> 解析 -> 入库 -> 导出 -> 报告
type Runner struct {
	opener   ContainerOpener
	store    *store.Store
	engine   *resolver.Engine
	writer   *report.Writer
	reporter *utils.Reporter
	mode     report.Mode
	provider string
	out      io.Writer
}

// RunnerOptions 构建 Runner 的参数
type RunnerOptions struct {
	Config   *Config
	Opener   ContainerOpener
	Store    *store.Store
	Provider string    // 提供商过滤, 空表示全部
	Out      io.Writer // 统计表格输出, nil 表示不输出
	Engine   []resolver.Option
}

// NewRunner 创建容器处理器
func NewRunner(opts RunnerOptions) *Runner {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		opener:   opts.Opener,
		store:    opts.Store,
		engine:   resolver.NewEngine(opts.Config.Resolver, opts.Store, opts.Engine...),
		writer:   report.NewWriter(opts.Config.Output.Dir),
		reporter: utils.NewReporter(opts.Config.Output.Dir),
		mode:     opts.Config.OutputMode(),
		provider: opts.Provider,
		out:      out,
	}
}

// Run 处理单个容器
// 返回的 ContainerResult 总是包含报告,即使处理失败
func (r *Runner) Run(ctx context.Context, containerURL string) (*ContainerResult, error) {
	passReport := models.NewPassReport(containerURL, r.provider)
	result := &ContainerResult{URL: containerURL, Report: passReport}
	log := utils.WithPass(passReport.PassID, passReport.Container)
	log.Info().Str("url", containerURL).Msg("开始处理容器")

	links, err := r.resolve(ctx, containerURL, passReport)
	passReport.Finish(links, err)
	result.Links = links

	if path, saveErr := r.reporter.SavePassReport(passReport); saveErr != nil {
		log.Warn().Err(saveErr).Msg("保存报告失败")
	} else {
		result.ReportPath = path
	}

	if err != nil {
		log.Error().Err(err).Msg("容器处理失败")
		return result, err
	}

	files, err := r.export(passReport.Info, links)
	if err != nil {
		log.Error().Err(err).Msg("导出工作簿失败")
		return result, err
	}
	result.Files = files

	utils.RenderPassStats(r.out, passReport.Info, passReport.Stats)
	log.Info().
		Int("resolved", passReport.Stats.Resolved).
		Int("failed", passReport.Stats.Failed).
		Int("inserted", passReport.Stats.Inserted).
		Msg("容器处理完成")
	return result, nil
}

// resolve 打开页面并解析,成功后写入存储
func (r *Runner) resolve(ctx context.Context, containerURL string, passReport *models.PassReport) ([]models.ResolvedLink, error) {
	page, err := r.opener.OpenContainer(ctx, containerURL)
	if err != nil {
		return nil, err
	}
	defer r.opener.CloseContainer(page)

	resolved, err := r.engine.Resolve(ctx, page, r.provider)
	if err != nil {
		return nil, err
	}
	passReport.Info = resolved.Info
	passReport.Title = resolved.Info.Title
	passReport.Stats = resolved.Stats

	inserted, err := r.store.UpsertIgnoreDuplicates(ctx, models.Persistable(resolved.Links))
	if err != nil {
		return resolved.Links, err
	}
	passReport.Stats.Inserted = inserted

	if resolved.Info.TitleFound {
		updated, err := r.store.BackfillContainerTitle(ctx, resolved.Info.Code, resolved.Info.Title)
		if err != nil {
			return resolved.Links, err
		}
		if updated > 0 {
			utils.Debugf("更新了 %d 条记录的容器标题", updated)
		}
	}

	utils.Infof("💾 新写入 %d 条链接", inserted)
	return resolved.Links, nil
}

func (r *Runner) export(info models.ContainerInfo, links []models.ResolvedLink) ([]string, error) {
	if r.mode == report.ModeDB {
		return nil, nil
	}
	exported, err := r.writer.ExportContainer(r.mode, info.Title, info.Code, links)
	if err != nil {
		return nil, fmt.Errorf("导出失败: %w", err)
	}
	return exported.Files, nil
}

package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
)

// Progress 进度回调, progressbar.ProgressBar 满足该接口
type Progress interface {
	Add(n int) error
	Finish() error
}

// ProgressFactory 按总数创建进度条
type ProgressFactory func(total int, description string) Progress

// BatchLimiter 根据系统资源限制同时打开的弹窗数量
type BatchLimiter interface {
	MaxPopups() int
}

type nopProgress struct{}

func (nopProgress) Add(int) error { return nil }
func (nopProgress) Finish() error { return nil }

// PassResult 单个容器的解析结果
type PassResult struct {
	Info  models.ContainerInfo
	Links []models.ResolvedLink // 按枚举顺序,包含失败记录
	Stats models.PassStats
}

// Engine 容器解析引擎
// 流程: 验证 -> 枚举 -> 预过滤 -> 分批解析 -> 合并
type Engine struct {
	cfg      models.ResolverConfig
	merger   *Merger
	limiter  BatchLimiter
	progress ProgressFactory
}

// Option 引擎选项
type Option func(*Engine)

// WithBatchLimiter 使用资源监控器进一步限制批次大小
func WithBatchLimiter(l BatchLimiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithProgress 设置进度条工厂
func WithProgress(f ProgressFactory) Option {
	return func(e *Engine) { e.progress = f }
}

// NewEngine 创建解析引擎
func NewEngine(cfg models.ResolverConfig, lookup LinkLookup, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		merger: NewMerger(lookup),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BatchSize 当前生效的批次大小
func (e *Engine) BatchSize() int {
	size := e.cfg.BatchSize
	if e.limiter != nil {
		if limit := e.limiter.MaxPopups(); limit > 0 && limit < size {
			utils.Debugf("资源受限,批次大小 %d -> %d", size, limit)
			size = limit
		}
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Resolve 解析已加载的容器页面
//
// 验证超时和表格缺失会终止该容器并返回错误; 存储查询失败同样返回错误。
// 单条链接失败只体现在结果中的 "ERROR" 字段。
func (e *Engine) Resolve(ctx context.Context, page Page, filterProvider string) (*PassResult, error) {
	start := time.Now()

	pageURL, err := page.URL()
	if err != nil {
		return nil, fmt.Errorf("读取容器地址失败: %w", err)
	}
	code := models.ParseContainerCode(pageURL)

	gates := NewGateResolver(page, e.cfg)
	for _, kind := range []models.GateKind{models.GatePassword, models.GateCaptcha} {
		if !gates.Clear(ctx, kind) {
			return nil, fmt.Errorf("容器 %s: %w", code, &models.GateError{Kind: kind})
		}
	}

	enumerated, err := NewEnumerator(page, e.cfg).Enumerate(ctx, code, filterProvider)
	if err != nil {
		return nil, fmt.Errorf("容器 %s: %w", code, err)
	}

	rawTitle := ReadContainerTitle(page)
	info := models.ContainerInfo{
		Code:       code,
		Title:      models.ResolveContainerTitle(rawTitle, code),
		TitleFound: models.HasContainerTitle(rawTitle),
		TotalSize:  models.TotalSize(enumerated.Sizes),
		Total:      enumerated.Total,
		Online:     enumerated.Online,
		Providers:  enumerated.Providers,
	}
	utils.Infof("📄 容器: %s (%s) | 总大小: %s | 在线: %d/%d", info.Title, code, info.TotalSize, info.Online, info.Total)
	if filterProvider != "" {
		utils.Infof("🔎 提供商过滤: %s, 匹配 %d 行", filterProvider, len(enumerated.Candidates))
	}

	// 页面未提供标题时保留已存储记录的标题
	refreshTitle := ""
	if info.TitleFound {
		refreshTitle = info.Title
	}
	skipped, pending, err := e.merger.Prefilter(ctx, enumerated.Candidates, refreshTitle)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		utils.Infof("♻️  %d 个链接已存在,跳过解析", len(skipped))
	}

	progress := e.newProgress(len(skipped)+len(pending), info.Title)
	_ = progress.Add(len(skipped))

	rotator := NewBypassRotator(e.cfg.BypassHost, e.cfg.BypassPool)
	resolved := NewBatchResolver(page, e.cfg, e.BatchSize(), rotator, info.Title, progress).
		Resolve(ctx, pending, enumerated.Handles)
	_ = progress.Finish()

	links := Merge(enumerated.Candidates, skipped, resolved)

	stats := models.PassStats{
		TotalRows: enumerated.Total,
		Online:    enumerated.Online,
		Matched:   len(enumerated.Candidates),
		Skipped:   len(skipped),
		Bypassed:  rotator.Used(),
		Duration:  time.Since(start).Seconds(),
	}
	for _, link := range resolved {
		if link.Failed() {
			stats.Failed++
		} else {
			stats.Resolved++
		}
	}

	return &PassResult{Info: info, Links: links, Stats: stats}, nil
}

func (e *Engine) newProgress(total int, title string) Progress {
	if e.progress == nil || total == 0 {
		return nopProgress{}
	}
	return e.progress(total, title)
}

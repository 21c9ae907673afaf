package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"golang.org/x/sync/errgroup"
)

// BatchResolver 分批点击下载按钮并拦截弹窗,解析真实下载地址
//
// 每批:
//  1. 依次点击下载按钮并等待弹窗 (popup_wait),失败的行直接记为 ERROR
//  2. 并发等待已打开弹窗加载 (page_load) 并读取地址,无论成败都关闭弹窗
//  3. 按点击顺序生成绕过地址
//
// 批次之间固定等待 batch_delay。单条链接失败不会中止整个解析。
type BatchResolver struct {
	page           Page
	cfg            models.ResolverConfig
	batchSize      int
	rotator        *BypassRotator
	containerTitle string
	progress       Progress
}

// NewBatchResolver 创建批量解析器
// rotator 由调用方持有,同一容器的所有批次共用
func NewBatchResolver(page Page, cfg models.ResolverConfig, batchSize int, rotator *BypassRotator, containerTitle string, progress Progress) *BatchResolver {
	if batchSize < 1 {
		batchSize = 1
	}
	if progress == nil {
		progress = nopProgress{}
	}
	return &BatchResolver{
		page:           page,
		cfg:            cfg,
		batchSize:      batchSize,
		rotator:        rotator,
		containerTitle: containerTitle,
		progress:       progress,
	}
}

// Resolve 解析所有待处理的候选行
// 返回结果与输入一一对应,顺序一致
func (b *BatchResolver) Resolve(ctx context.Context, pending []models.LinkCandidate, handles RowHandles) []models.ResolvedLink {
	results := make([]models.ResolvedLink, 0, len(pending))
	totalBatches := (len(pending) + b.batchSize - 1) / b.batchSize

	for start, batchNum := 0, 1; start < len(pending); start, batchNum = start+b.batchSize, batchNum+1 {
		end := start + b.batchSize
		if end > len(pending) {
			end = len(pending)
		}

		utils.Infof("📦 处理批次 %d/%d (%d个链接)", batchNum, totalBatches, end-start)
		results = append(results, b.resolveBatch(ctx, pending[start:end], handles)...)

		if end < len(pending) {
			if err := sleepContext(ctx, b.cfg.BatchDelay); err != nil {
				utils.Warnf("批次间等待被中断: %v", err)
			}
		}
	}

	return results
}

// resolveBatch 处理单个批次
func (b *BatchResolver) resolveBatch(ctx context.Context, batch []models.LinkCandidate, handles RowHandles) []models.ResolvedLink {
	out := make([]models.ResolvedLink, len(batch))
	popups := make([]Page, len(batch))

	// 点击阶段: 顺序执行,点击顺序决定候选行与弹窗的对应关系
	for i, candidate := range batch {
		out[i] = models.NewFailedLink(candidate, b.containerTitle)

		control := handles.Control(candidate.Index)
		if control == nil {
			utils.Warnf("⚠️  第%d行缺少下载按钮: %s", candidate.Index+1, candidate.Title)
			continue
		}

		popup, err := b.page.ClickForPopup(ctx, control, b.cfg.PopupWait)
		if err != nil {
			utils.Warnf("⚠️  打开弹窗失败 [%s]: %v", candidate.Title, err)
			continue
		}
		popups[i] = popup
	}

	// 加载阶段: 最多 batchSize 个弹窗同时等待
	urls := make([]string, len(batch))
	errs := make([]error, len(batch))

	var g errgroup.Group
	g.SetLimit(b.batchSize)
	for i, popup := range popups {
		if popup == nil {
			continue
		}
		g.Go(func() error {
			defer closePopup(popup)
			urls[i], errs[i] = b.readPopup(ctx, popup)
			return nil
		})
	}
	_ = g.Wait()

	// 结果阶段: 按点击顺序处理,保证绕过地址轮询顺序确定
	for i, candidate := range batch {
		if popups[i] != nil {
			if errs[i] != nil {
				utils.Warnf("⚠️  解析失败 [%s]: %v", candidate.Title, errs[i])
			} else {
				out[i].DownloadURL = urls[i]
				out[i].BypassURL = b.rotator.Apply(urls[i])
				utils.Debugf("解析成功 [%s]: %s", candidate.Title, urls[i])
			}
		}
		_ = b.progress.Add(1)
	}

	return out
}

// readPopup 等待弹窗加载并读取最终地址
func (b *BatchResolver) readPopup(ctx context.Context, popup Page) (string, error) {
	if err := popup.WaitLoad(ctx, b.cfg.PageLoad); err != nil {
		if errors.Is(err, models.ErrLoadTimeout) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", models.ErrLoadTimeout, err)
	}

	u, err := popup.URL()
	if err != nil {
		return "", fmt.Errorf("%w: 读取弹窗地址失败: %v", models.ErrResolution, err)
	}
	if u == "" || u == "about:blank" {
		return "", fmt.Errorf("%w: 弹窗地址为空", models.ErrResolution)
	}
	return u, nil
}

func closePopup(popup Page) {
	if err := popup.Close(); err != nil {
		utils.Debugf("关闭弹窗失败: %v", err)
	}
}

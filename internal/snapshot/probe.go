package snapshot

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/resolver"
)

// ProbeResult 静态枚举结果
type ProbeResult struct {
	Info       models.ContainerInfo
	Candidates []models.LinkCandidate
	Gates      []models.GateKind // 页面当前显示的验证
}

// Probe 不打开弹窗,只读取容器信息和候选行
// 页面处于验证状态时不枚举,只返回 Gates
func Probe(ctx context.Context, page resolver.Page, cfg models.ResolverConfig, filterProvider string) (*ProbeResult, error) {
	pageURL, err := page.URL()
	if err != nil {
		return nil, fmt.Errorf("读取页面地址失败: %w", err)
	}
	code := models.ParseContainerCode(pageURL)
	result := &ProbeResult{Info: models.ContainerInfo{Code: code}}

	gates := resolver.NewGateResolver(page, cfg)
	for _, kind := range []models.GateKind{models.GatePassword, models.GateCaptcha} {
		if gates.Present(kind) {
			result.Gates = append(result.Gates, kind)
		}
	}
	if len(result.Gates) > 0 {
		result.Info.Title = models.ResolveContainerTitle(models.UnknownTitle, code)
		return result, nil
	}

	enumerated, err := resolver.NewEnumerator(page, cfg).Enumerate(ctx, code, filterProvider)
	if err != nil {
		return nil, err
	}

	rawTitle := resolver.ReadContainerTitle(page)
	result.Info = models.ContainerInfo{
		Code:       code,
		Title:      models.ResolveContainerTitle(rawTitle, code),
		TitleFound: models.HasContainerTitle(rawTitle),
		TotalSize:  models.TotalSize(enumerated.Sizes),
		Total:      enumerated.Total,
		Online:     enumerated.Online,
		Providers:  enumerated.Providers,
	}
	result.Candidates = enumerated.Candidates
	return result, nil
}

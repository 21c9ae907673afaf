package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
)

// 容器页面选择器
const (
	SelectorRows      = "tr.kwj3"
	SelectorProvider  = "td[title] a.external_link"
	SelectorTitleCell = "td[title]"
	SelectorSize      = "td:nth-of-type(3)"
	SelectorStatus    = "td.status i"
	SelectorDownload  = "td button.download"
	SelectorHeading   = "h2"
)

// EnumerateResult 行枚举结果
type EnumerateResult struct {
	Candidates []models.LinkCandidate // 通过过滤的候选行,按页面顺序
	Handles    RowHandles             // 行号 -> 下载按钮
	Total      int                    // 扫描的总行数(含被过滤的)
	Online     int                    // 在线行数(含被过滤的)
	Providers  []string               // 页面中出现的所有提供商,已排序
	Sizes      []string               // 所有行的大小文本
}

// Enumerator 链接表格枚举器
type Enumerator struct {
	page    Page
	aliases ProviderAliases
	wait    models.ResolverConfig
}

// NewEnumerator 创建枚举器
func NewEnumerator(page Page, cfg models.ResolverConfig) *Enumerator {
	return &Enumerator{
		page:    page,
		aliases: ProviderAliases(cfg.Aliases),
		wait:    cfg,
	}
}

// Enumerate 扫描链接表格
// filterProvider 为空时保留所有行; 否则只保留规范化提供商与之相同(不区分大小写)的行,
// 但所有行仍计入 Total/Online/Providers。
// 表格在 selector_wait 内未出现时返回 ErrLayoutMismatch。
func (e *Enumerator) Enumerate(ctx context.Context, containerCode, filterProvider string) (*EnumerateResult, error) {
	if err := e.page.WaitForSelector(ctx, SelectorRows, e.wait.SelectorWait); err != nil {
		return nil, fmt.Errorf("%w: %s (%v)", models.ErrLayoutMismatch, SelectorRows, err)
	}

	rows, err := e.page.QueryAll(SelectorRows)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询表格行失败: %v", models.ErrLayoutMismatch, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: 表格为空", models.ErrLayoutMismatch)
	}

	filter := strings.TrimSpace(filterProvider)
	result := &EnumerateResult{
		Candidates: make([]models.LinkCandidate, 0, len(rows)),
		Handles:    make(RowHandles),
	}
	providers := make(map[string]struct{})

	for index, row := range rows {
		candidate, control := e.readRow(row)
		candidate.Index = index
		candidate.ContainerCode = containerCode

		result.Total++
		result.Sizes = append(result.Sizes, candidate.Size)
		if candidate.IsOnline() {
			result.Online++
		}
		providers[candidate.Provider] = struct{}{}

		if filter != "" && !strings.EqualFold(candidate.Provider, filter) {
			continue
		}

		result.Candidates = append(result.Candidates, candidate)
		if control != nil {
			result.Handles[index] = control
		}
	}

	result.Providers = make([]string, 0, len(providers))
	for p := range providers {
		result.Providers = append(result.Providers, p)
	}
	sort.Strings(result.Providers)

	utils.Debugf("枚举完成: 总行数=%d, 在线=%d, 匹配=%d", result.Total, result.Online, len(result.Candidates))
	return result, nil
}

// readRow 读取单行字段,字段缺失时使用默认值
func (e *Enumerator) readRow(row Element) (models.LinkCandidate, Element) {
	candidate := models.LinkCandidate{
		Title:    models.SentinelNA,
		Provider: models.SentinelNA,
		Size:     models.SentinelNA,
		Status:   models.StatusOffline,
	}

	if el, err := row.Query(SelectorProvider); err == nil && el != nil {
		if text, err := el.Text(); err == nil {
			candidate.Provider = e.aliases.Canonical(text)
		}
	}

	if el, err := row.Query(SelectorTitleCell); err == nil && el != nil {
		if title, ok, err := el.Attribute("title"); err == nil && ok && strings.TrimSpace(title) != "" {
			candidate.Title = strings.TrimSpace(title)
		}
	}

	if el, err := row.Query(SelectorSize); err == nil && el != nil {
		if text, err := el.Text(); err == nil && strings.TrimSpace(text) != "" {
			candidate.Size = strings.TrimSpace(text)
		}
	}

	if el, err := row.Query(SelectorStatus); err == nil && el != nil {
		if class, ok, err := el.Attribute("class"); err == nil && ok {
			if normalized := strings.Join(strings.Fields(class), " "); normalized != "" {
				candidate.Status = normalized
			}
		}
	}

	control, err := row.Query(SelectorDownload)
	if err != nil {
		control = nil
	}
	return candidate, control
}

// ReadContainerTitle 读取容器标题 (页面第一个 h2)
func ReadContainerTitle(page Page) string {
	el, err := page.Query(SelectorHeading)
	if err != nil || el == nil {
		return models.UnknownTitle
	}
	text, err := el.Text()
	if err != nil {
		return models.UnknownTitle
	}
	title := strings.TrimSpace(text)
	switch strings.ToLower(title) {
	case "", "n/a", "unknown":
		return models.UnknownTitle
	}
	return title
}

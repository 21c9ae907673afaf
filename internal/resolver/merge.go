package resolver

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
)

// LinkLookup 预过滤阶段使用的只读存储接口
type LinkLookup interface {
	// Get 按主键查询,不存在时返回 nil, nil
	Get(ctx context.Context, key models.LinkKey) (*models.ResolvedLink, error)
}

// Merger 去重合并
type Merger struct {
	lookup LinkLookup
}

// NewMerger 创建合并器, lookup 为nil时所有候选行都需要解析
func NewMerger(lookup LinkLookup) *Merger {
	return &Merger{lookup: lookup}
}

// Prefilter 解析前检查存储
//
// 已存储的行直接复用存储记录(刷新容器标题),不再点击下载按钮;
// 其余行进入 pending。同一页面中重复的键只解析第一次出现的行。
func (m *Merger) Prefilter(ctx context.Context, candidates []models.LinkCandidate, containerTitle string) (skipped []models.ResolvedLink, pending []models.LinkCandidate, err error) {
	seen := make(map[models.LinkKey]struct{}, len(candidates))

	for _, candidate := range candidates {
		key := candidate.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if m.lookup != nil {
			stored, err := m.lookup.Get(ctx, key)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: 查询 %s: %v", models.ErrStore, key, err)
			}
			if stored != nil {
				reused := *stored
				reused.Index = candidate.Index
				if containerTitle != "" {
					reused.ContainerTitle = containerTitle
				}
				skipped = append(skipped, reused)
				continue
			}
		}
		pending = append(pending, candidate)
	}

	return skipped, pending, nil
}

// Merge 按枚举顺序合并复用记录与解析结果
//
// 每个键只输出一次,位置取其第一次出现的行。解析失败的记录照常输出,
// 由 ResolvedLink.Failed 标记,持久化前用 models.Persistable 过滤。
func Merge(candidates []models.LinkCandidate, skipped, resolved []models.ResolvedLink) []models.ResolvedLink {
	reused := indexByKey(skipped)
	fresh := indexByKey(resolved)

	merged := make([]models.ResolvedLink, 0, len(candidates))
	emitted := make(map[models.LinkKey]struct{}, len(candidates))

	for _, candidate := range candidates {
		key := candidate.Key()
		if _, done := emitted[key]; done {
			continue
		}
		emitted[key] = struct{}{}

		if link, ok := reused[key]; ok {
			merged = append(merged, link)
			continue
		}
		if link, ok := fresh[key]; ok {
			merged = append(merged, link)
			continue
		}
		// 候选行既未复用也未解析,按失败输出以保留可见性
		merged = append(merged, models.NewFailedLink(candidate, ""))
	}

	return merged
}

func indexByKey(links []models.ResolvedLink) map[models.LinkKey]models.ResolvedLink {
	m := make(map[models.LinkKey]models.ResolvedLink, len(links))
	for _, link := range links {
		key := link.Key()
		if _, exists := m[key]; !exists {
			m[key] = link
		}
	}
	return m
}

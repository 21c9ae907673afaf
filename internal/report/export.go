package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
)

// Mode 输出模式
type Mode string

const (
	ModeAll        Mode = "all"        // 追加到汇总工作簿
	ModeIndividual Mode = "individual" // 每个容器一个工作簿
	ModeBoth       Mode = "both"       // 两者都写
	ModeDB         Mode = "db"         // 只写数据库
)

// ParseMode 解析输出模式
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAll, ModeIndividual, ModeBoth, ModeDB:
		return m, nil
	case "":
		return ModeAll, nil
	default:
		return "", fmt.Errorf("无效的输出模式: %s (可选: all, individual, both, db)", s)
	}
}

func (m Mode) combined() bool   { return m == ModeAll || m == ModeBoth }
func (m Mode) individual() bool { return m == ModeIndividual || m == ModeBoth }

// ExportResult 导出统计
type ExportResult struct {
	Files []string
	Added int
}

// ExportContainer 按输出模式导出单个容器的解析结果
func (w *Writer) ExportContainer(mode Mode, containerTitle, containerCode string, links []models.ResolvedLink) (*ExportResult, error) {
	result := &ExportResult{}

	if mode.combined() {
		added, err := w.AppendCombined(links)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, filepath.Join(w.dir, CombinedFile))
		result.Added += added
	}

	if mode.individual() && len(models.Persistable(links)) > 0 {
		path, added, err := w.WriteIndividual(containerTitle, containerCode, links)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, path)
		result.Added += added
	}

	return result, nil
}

// ExportAll 导出整个数据库,individual 模式下按容器拆分文件
func (w *Writer) ExportAll(mode Mode, links []models.ResolvedLink) (*ExportResult, error) {
	if mode == ModeDB {
		return nil, fmt.Errorf("导出模式不能为 %s", ModeDB)
	}

	result := &ExportResult{}
	if mode.combined() {
		added, err := w.AppendCombined(links)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, filepath.Join(w.dir, CombinedFile))
		result.Added += added
	}

	if mode.individual() {
		for _, group := range groupByContainer(links) {
			path, added, err := w.WriteIndividual(group.title, group.code, group.links)
			if err != nil {
				return nil, err
			}
			result.Files = append(result.Files, path)
			result.Added += added
		}
	}

	return result, nil
}

type containerGroup struct {
	code  string
	title string
	links []models.ResolvedLink
}

// groupByContainer 按容器分组,保持首次出现的顺序
// 标题取组内第一个有效的容器标题,都无效时使用容器代码
func groupByContainer(links []models.ResolvedLink) []*containerGroup {
	var groups []*containerGroup
	index := make(map[string]*containerGroup)

	for _, link := range links {
		key := strings.ToLower(strings.TrimSpace(link.ContainerCode))
		g, ok := index[key]
		if !ok {
			g = &containerGroup{code: link.ContainerCode}
			index[key] = g
			groups = append(groups, g)
		}
		if g.title == "" {
			if title := models.ResolveContainerTitle(link.ContainerTitle, ""); title != "" {
				g.title = title
			}
		}
		g.links = append(g.links, link)
	}

	for _, g := range groups {
		if g.title == "" {
			g.title = g.code
		}
	}
	return groups
}

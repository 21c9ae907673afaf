package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/xuri/excelize/v2"
)

const (
	// AllSheet 汇总所有提供商的工作表
	AllSheet = "ALL_PROVIDER_RESULTS"

	// CombinedFile 汇总工作簿文件名
	CombinedFile = "RESULT_DATABASE.xlsx"

	// maxSheetName excel工作表名称长度上限
	maxSheetName = 31
)

// Headers 工作表表头
var Headers = []string{"No", "Title", "Provider", "Size", "Status", "Download URL", "Bypass URL", "Container Code"}

var columnWidths = map[string]float64{
	"A": 5, "B": 60, "C": 15, "D": 10, "E": 15, "F": 60, "G": 60, "H": 15,
}

// Writer 解析结果工作簿写入器
//
// 每个工作簿包含 ALL_PROVIDER_RESULTS 汇总表和按提供商拆分的工作表。
// 写入前读取已有行,按 LinkKey 去重后追加,并重新编号 No 列,
// 因此对同一批链接重复写入不会产生重复行。
type Writer struct {
	dir string
}

// NewWriter 创建写入器, dir 为输出目录
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir 输出目录
func (w *Writer) Dir() string {
	return w.dir
}

// AppendCombined 追加到汇总工作簿 RESULT_DATABASE.xlsx
func (w *Writer) AppendCombined(links []models.ResolvedLink) (int, error) {
	return w.Append(filepath.Join(w.dir, CombinedFile), links)
}

// WriteIndividual 写入单个容器的工作簿,文件名取自容器标题
// 返回文件路径和新增行数
func (w *Writer) WriteIndividual(containerTitle, containerCode string, links []models.ResolvedLink) (string, int, error) {
	name := utils.SanitizeFilename(containerTitle, containerCode)
	path := filepath.Join(w.dir, name+".xlsx")
	added, err := w.Append(path, links)
	return path, added, err
}

// Append 将链接追加到指定工作簿,返回汇总表新增的行数
// 解析失败的记录会被忽略
func (w *Writer) Append(path string, links []models.ResolvedLink) (int, error) {
	links = models.Persistable(links)

	f, created, err := openWorkbook(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if created && len(links) == 0 {
		return 0, nil
	}

	added, err := appendSheet(f, AllSheet, links)
	if err != nil {
		return 0, err
	}

	byProvider := make(map[string][]models.ResolvedLink)
	for _, link := range links {
		name := SheetName(link.Provider)
		byProvider[name] = append(byProvider[name], link)
	}
	names := make([]string, 0, len(byProvider))
	for name := range byProvider {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := appendSheet(f, name, byProvider[name]); err != nil {
			return 0, err
		}
	}

	if created {
		// 新建文件自带的默认工作表
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return 0, fmt.Errorf("删除默认工作表失败: %w", err)
		}
	}
	if idx, err := f.GetSheetIndex(AllSheet); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("保存工作簿失败 %s: %w", path, err)
	}

	utils.Infof("📁 已保存: %s (新增 %d 行)", path, added)
	return added, nil
}

// ReadLinks 读取工作簿汇总表中的链接
func ReadLinks(path string) ([]models.ResolvedLink, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开工作簿失败 %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(AllSheet)
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败 %s: %w", AllSheet, err)
	}
	return parseRows(rows), nil
}

// SheetName 提供商对应的工作表名称
// 去掉excel不允许的字符并截断到31个字符
func SheetName(provider string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, strings.TrimSpace(provider))
	if name == "" {
		name = "NA"
	}
	if strings.EqualFold(name, AllSheet) {
		name = "_" + name
	}
	runes := []rune(name)
	if len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	return name
}

func openWorkbook(path string) (*excelize.File, bool, error) {
	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("打开工作簿失败 %s: %w", path, err)
		}
		return f, false, nil
	}
	return excelize.NewFile(), true, nil
}

// appendSheet 追加不重复的行并重新编号,返回新增行数
func appendSheet(f *excelize.File, sheet string, links []models.ResolvedLink) (int, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return 0, fmt.Errorf("查询工作表失败 %s: %w", sheet, err)
	}
	if idx < 0 {
		if len(links) == 0 {
			return 0, nil
		}
		if err := createSheet(f, sheet); err != nil {
			return 0, err
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("读取工作表失败 %s: %w", sheet, err)
	}
	existing := make(map[models.LinkKey]struct{}, len(rows))
	for _, link := range parseRows(rows) {
		existing[link.Key()] = struct{}{}
	}

	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	added := 0
	for _, link := range links {
		key := link.Key()
		if _, dup := existing[key]; dup {
			continue
		}
		existing[key] = struct{}{}

		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return 0, err
		}
		row := []any{0, link.Title, link.Provider, link.Size, link.Status, link.DownloadURL, link.BypassURL, link.ContainerCode}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return 0, fmt.Errorf("写入行失败 %s: %w", sheet, err)
		}
		next++
		added++
	}

	// 重新编号
	for r := 2; r < next; r++ {
		cell, err := excelize.CoordinatesToCellName(1, r)
		if err != nil {
			return 0, err
		}
		if err := f.SetCellValue(sheet, cell, r-1); err != nil {
			return 0, err
		}
	}

	return added, nil
}

func createSheet(f *excelize.File, sheet string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("创建工作表失败 %s: %w", sheet, err)
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("写入表头失败 %s: %w", sheet, err)
	}

	for col, width := range columnWidths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}
	return f.SetColStyle(sheet, "A:H", style)
}

// parseRows 将工作表行转换为链接,跳过表头和不完整的行
func parseRows(rows [][]string) []models.ResolvedLink {
	links := make([]models.ResolvedLink, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cell := func(c int) string {
			if c < len(row) {
				return row[c]
			}
			return ""
		}
		if cell(1) == "" || cell(2) == "" || cell(7) == "" {
			continue
		}
		links = append(links, models.ResolvedLink{
			LinkCandidate: models.LinkCandidate{
				Title:         cell(1),
				Provider:      cell(2),
				Size:          cell(3),
				Status:        cell(4),
				ContainerCode: cell(7),
			},
			DownloadURL: cell(5),
			BypassURL:   cell(6),
		})
	}
	return links
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/resolver"
)

// ErrStatic 静态快照无法执行交互操作
var ErrStatic = errors.New("静态快照不支持交互操作")

// Element goquery选择集适配器
type Element struct {
	sel *goquery.Selection
}

// Text 元素文本
func (e *Element) Text() (string, error) {
	return e.sel.Text(), nil
}

// Attribute 元素属性
func (e *Element) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// Query 查询第一个子元素
func (e *Element) Query(selector string) (resolver.Element, error) {
	return first(e.sel.Find(selector)), nil
}

// QueryAll 查询所有子元素
func (e *Element) QueryAll(selector string) ([]resolver.Element, error) {
	return all(e.sel.Find(selector)), nil
}

func first(sel *goquery.Selection) resolver.Element {
	if sel.Length() == 0 {
		return nil
	}
	return &Element{sel: sel.First()}
}

func all(sel *goquery.Selection) []resolver.Element {
	out := make([]resolver.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s})
	})
	return out
}

// Document 已下载的容器页面,实现只读的 resolver.Page
//
// 所有等待立即返回; ClickForPopup 始终失败,因此解析阶段的每一行都会得到 "ERROR"。
// 适用于枚举和调试选择器。
type Document struct {
	doc *goquery.Document
	url string
}

// Parse 从HTML解析文档, pageURL 用于提取容器代码
func Parse(r io.Reader, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	return &Document{doc: doc, url: pageURL}, nil
}

// LoadFile 读取本地保存的HTML文件
// 文件名即容器代码, 如 ABC123.html
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	return Parse(f, models.ContainerURLPrefix+filepath.Base(path))
}

// WaitForSelector 静态文档中选择器不存在时立即失败
func (d *Document) WaitForSelector(_ context.Context, selector string, _ time.Duration) error {
	if d.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("选择器 %s 不存在", selector)
	}
	return nil
}

// Query 查询第一个元素
func (d *Document) Query(selector string) (resolver.Element, error) {
	return first(d.doc.Find(selector)), nil
}

// QueryAll 查询所有元素
func (d *Document) QueryAll(selector string) ([]resolver.Element, error) {
	return all(d.doc.Find(selector)), nil
}

// ClickForPopup 静态文档不支持
func (d *Document) ClickForPopup(context.Context, resolver.Element, time.Duration) (resolver.Page, error) {
	return nil, fmt.Errorf("%w: %w", models.ErrPopupTimeout, ErrStatic)
}

// WaitLoad 静态文档已加载完成
func (d *Document) WaitLoad(context.Context, time.Duration) error {
	return nil
}

// URL 文档地址
func (d *Document) URL() (string, error) {
	return d.url, nil
}

// Close 无需释放资源
func (d *Document) Close() error {
	return nil
}

// HTML 返回整个文档的HTML
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/resolver"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Element rod元素适配器
type Element struct {
	el *rod.Element
}

// Text 元素文本
func (e *Element) Text() (string, error) {
	return e.el.Text()
}

// Attribute 元素属性
func (e *Element) Attribute(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// Query 查询第一个子元素,不存在时返回 nil, nil
func (e *Element) Query(selector string) (resolver.Element, error) {
	has, el, err := e.el.Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return &Element{el: el}, nil
}

// QueryAll 查询所有子元素
func (e *Element) QueryAll(selector string) ([]resolver.Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func wrapElements(els rod.Elements) []resolver.Element {
	out := make([]resolver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{el: el})
	}
	return out
}

// Page rod标签页适配器,实现 resolver.Page
type Page struct {
	page    *rod.Page
	session *Session
}

// WaitForSelector 等待元素出现
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	tp := p.page.Context(ctx).Timeout(timeout)
	defer tp.CancelTimeout()

	if _, err := tp.Element(selector); err != nil {
		return fmt.Errorf("等待元素 %s 超时: %w", selector, err)
	}
	return nil
}

// Query 查询第一个元素,不存在时返回 nil, nil
func (p *Page) Query(selector string) (resolver.Element, error) {
	has, el, err := p.page.Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return &Element{el: el}, nil
}

// QueryAll 查询所有元素
func (p *Page) QueryAll(selector string) ([]resolver.Element, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

// ClickForPopup 点击元素并等待新窗口打开
// 等待在点击之前注册,避免错过快速打开的弹窗
func (p *Page) ClickForPopup(ctx context.Context, control resolver.Element, timeout time.Duration) (resolver.Page, error) {
	el, ok := control.(*Element)
	if !ok || el == nil {
		return nil, fmt.Errorf("%w: 不支持的元素类型 %T", models.ErrPopupTimeout, control)
	}

	tp := p.page.Context(ctx).Timeout(timeout)
	defer tp.CancelTimeout()
	wait := tp.WaitOpen()

	te := el.el.Context(ctx).Timeout(timeout)
	defer te.CancelTimeout()
	if err := te.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("%w: 点击下载按钮失败: %v", models.ErrPopupTimeout, err)
	}

	popup, err := wait()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPopupTimeout, err)
	}

	popup = popup.Context(ctx)
	if p.session != nil {
		p.session.track(popup)
	}
	return &Page{page: popup, session: p.session}, nil
}

// WaitLoad 等待页面加载完成
func (p *Page) WaitLoad(ctx context.Context, timeout time.Duration) error {
	tp := p.page.Context(ctx).Timeout(timeout)
	defer tp.CancelTimeout()

	if err := tp.WaitLoad(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrLoadTimeout, err)
	}
	return nil
}

// URL 当前地址
func (p *Page) URL() (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Close 关闭标签页
func (p *Page) Close() error {
	if p.session != nil {
		p.session.untrack(p.page)
	}
	return p.page.Close()
}

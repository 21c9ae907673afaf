package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
)

// fakeElement 测试用元素
type fakeElement struct {
	text     string
	attrs    map[string]string
	children map[string][]*fakeElement

	// 下载按钮专用
	popupURL  string
	popupErr  error
	loadErr   error
	loadDelay time.Duration
}

func (e *fakeElement) Text() (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) Query(selector string) (Element, error) {
	if c := e.children[selector]; len(c) > 0 {
		return c[0], nil
	}
	return nil, nil
}

func (e *fakeElement) QueryAll(selector string) ([]Element, error) {
	out := make([]Element, 0, len(e.children[selector]))
	for _, c := range e.children[selector] {
		out = append(out, c)
	}
	return out, nil
}

// fakePage 测试用容器页面
type fakePage struct {
	mu       sync.Mutex
	url      string
	doc      *fakeElement
	headings func() []string

	clicks  int
	open    int
	maxOpen int
	closed  int
}

func (p *fakePage) WaitForSelector(_ context.Context, selector string, _ time.Duration) error {
	if len(p.doc.children[selector]) == 0 {
		return errors.New("timeout")
	}
	return nil
}

func (p *fakePage) Query(selector string) (Element, error) {
	if selector == "h2" {
		all, _ := p.QueryAll("h2")
		if len(all) == 0 {
			return nil, nil
		}
		return all[0], nil
	}
	return p.doc.Query(selector)
}

func (p *fakePage) QueryAll(selector string) ([]Element, error) {
	if selector == "h2" && p.headings != nil {
		var out []Element
		for _, h := range p.headings() {
			out = append(out, &fakeElement{text: h})
		}
		return out, nil
	}
	return p.doc.QueryAll(selector)
}

func (p *fakePage) ClickForPopup(_ context.Context, control Element, _ time.Duration) (Page, error) {
	el := control.(*fakeElement)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks++
	if el.popupErr != nil {
		return nil, el.popupErr
	}
	p.open++
	if p.open > p.maxOpen {
		p.maxOpen = p.open
	}
	return &fakePopup{parent: p, url: el.popupURL, loadErr: el.loadErr, delay: el.loadDelay}, nil
}

func (p *fakePage) WaitLoad(context.Context, time.Duration) error { return nil }
func (p *fakePage) URL() (string, error)                          { return p.url, nil }
func (p *fakePage) Close() error                                  { return nil }

func (p *fakePage) stats() (clicks, open, maxOpen, closed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks, p.open, p.maxOpen, p.closed
}

// fakePopup 测试用弹窗
type fakePopup struct {
	parent  *fakePage
	url     string
	loadErr error
	delay   time.Duration
	once    sync.Once
}

func (p *fakePopup) WaitForSelector(context.Context, string, time.Duration) error { return nil }
func (p *fakePopup) Query(string) (Element, error)                                { return nil, nil }
func (p *fakePopup) QueryAll(string) ([]Element, error)                           { return nil, nil }
func (p *fakePopup) ClickForPopup(context.Context, Element, time.Duration) (Page, error) {
	return nil, errors.New("not supported")
}

func (p *fakePopup) WaitLoad(context.Context, time.Duration) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.loadErr
}

func (p *fakePopup) URL() (string, error) { return p.url, nil }

func (p *fakePopup) Close() error {
	p.once.Do(func() {
		p.parent.mu.Lock()
		p.parent.open--
		p.parent.closed++
		p.parent.mu.Unlock()
	})
	return nil
}

// fakeRow 构造表格行的参数
type fakeRow struct {
	title     string
	provider  string
	size      string
	status    string
	url       string
	noButton  bool
	popupErr  error
	loadErr   error
	loadDelay time.Duration
}

// newContainerPage 构造包含链接表格的容器页面
func newContainerPage(code, title string, rows []fakeRow) *fakePage {
	doc := &fakeElement{children: map[string][]*fakeElement{}}
	for _, r := range rows {
		row := &fakeElement{children: map[string][]*fakeElement{
			SelectorProvider:  {{text: r.provider}},
			SelectorTitleCell: {{attrs: map[string]string{"title": r.title}}},
			SelectorSize:      {{text: r.size}},
			SelectorStatus:    {{attrs: map[string]string{"class": r.status}}},
		}}
		if !r.noButton {
			row.children[SelectorDownload] = []*fakeElement{{
				popupURL:  r.url,
				popupErr:  r.popupErr,
				loadErr:   r.loadErr,
				loadDelay: r.loadDelay,
			}}
		}
		doc.children[SelectorRows] = append(doc.children[SelectorRows], row)
	}

	return &fakePage{
		url:      "https://filecrypt.co/Container/" + code + ".html",
		doc:      doc,
		headings: func() []string { return []string{title} },
	}
}

// memStore 测试用内存存储
type memStore struct {
	mu    sync.Mutex
	links map[models.LinkKey]models.ResolvedLink
	err   error
}

func newMemStore() *memStore {
	return &memStore{links: make(map[models.LinkKey]models.ResolvedLink)}
}

func (s *memStore) Get(_ context.Context, key models.LinkKey) (*models.ResolvedLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	link, ok := s.links[key]
	if !ok {
		return nil, nil
	}
	return &link, nil
}

func (s *memStore) upsert(links []models.ResolvedLink) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, link := range links {
		if _, ok := s.links[link.Key()]; ok {
			continue
		}
		s.links[link.Key()] = link
		inserted++
	}
	return inserted
}

func testConfig() models.ResolverConfig {
	cfg := models.DefaultResolverConfig()
	cfg.SelectorWait = 50 * time.Millisecond
	cfg.PopupWait = 50 * time.Millisecond
	cfg.PageLoad = 50 * time.Millisecond
	cfg.PasswordTimeout = 60 * time.Millisecond
	cfg.PasswordInterval = 10 * time.Millisecond
	cfg.CaptchaTimeout = 60 * time.Millisecond
	cfg.CaptchaInterval = 10 * time.Millisecond
	cfg.BatchDelay = 0
	return cfg
}

func pixeldrainURL(code string) string {
	return fmt.Sprintf("https://pixeldrain.com/u/%s", code)
}

package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/resolver"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrBrowserCrashed 浏览器崩溃或连接断开,需要重启会话
var ErrBrowserCrashed = errors.New("浏览器崩溃")

// Session 浏览器会话
//
// 同一时间只驱动一个容器标签页。弹窗由 Page.ClickForPopup 登记,
// CloseContainer 时关闭所有残留的弹窗。
type Session struct {
	opts    Options
	headers models.HeaderProvider

	browser  *rod.Browser
	launcher *launcher.Launcher

	mu     sync.Mutex
	popups map[proto.TargetTargetID]*rod.Page
}

// NewSession 创建会话, headers 可以为nil
func NewSession(opts Options, headers models.HeaderProvider) *Session {
	return &Session{
		opts:    opts,
		headers: headers,
		popups:  make(map[proto.TargetTargetID]*rod.Page),
	}
}

// Start 启动浏览器
func (s *Session) Start() error {
	browser, l, err := Launch(s.opts)
	if err != nil {
		return err
	}
	s.browser = browser
	s.launcher = l
	utils.Infof("🌐 浏览器已启动 (headless=%v, profile=%s)", s.opts.Headless, s.opts.UserDataDir)
	return nil
}

// Restart 关闭并重新启动浏览器
func (s *Session) Restart() error {
	s.Close()
	return s.Start()
}

// Close 关闭浏览器
// 用户目录是持久化的,不做清理
func (s *Session) Close() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			utils.Debugf("关闭浏览器失败: %v", err)
		}
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	s.mu.Lock()
	s.popups = make(map[proto.TargetTargetID]*rod.Page)
	s.mu.Unlock()
	utils.Debugf("浏览器已关闭")
}

// OpenContainer 打开容器页面,失败时按配置重试
// 浏览器操作中的panic被转换为 ErrBrowserCrashed
func (s *Session) OpenContainer(ctx context.Context, containerURL string) (page resolver.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("浏览器操作panic: %v", r)
			page, err = nil, ErrBrowserCrashed
		}
	}()

	if s.browser == nil {
		return nil, fmt.Errorf("%w: 浏览器未启动", ErrBrowserCrashed)
	}

	retries := s.opts.OpenRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		p, err := s.openTab(ctx, containerURL)
		if err == nil {
			s.closeBlankTabs(p.TargetID)
			return &Page{page: p, session: s}, nil
		}
		lastErr = err
		utils.Warnf("⚠️  打开容器页面失败,重试 (%d/%d): %v", attempt, retries, err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("打开容器页面失败 (已重试%d次): %w", retries, lastErr)
}

// openTab 新建标签页,注入反检测脚本和请求头后导航
func (s *Session) openTab(ctx context.Context, containerURL string) (*rod.Page, error) {
	p, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}

	if err := s.applyIdentity(p); err != nil {
		_ = p.Close()
		return nil, err
	}

	tp := p.Context(ctx).Timeout(s.opts.NavigateTimeout)
	defer tp.CancelTimeout()

	if err := tp.Navigate(containerURL); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("导航失败: %w", err)
	}
	if err := tp.WaitLoad(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("等待页面加载失败: %w", err)
	}

	return p.Context(ctx), nil
}

// applyIdentity 设置User-Agent和额外请求头
func (s *Session) applyIdentity(p *rod.Page) error {
	ua := RandomUserAgent(s.opts.UserAgents)
	if s.headers != nil {
		if custom := s.headers.UserAgent(); custom != "" {
			ua = custom
		}
	}
	if ua != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			return fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}

	if s.headers == nil {
		return nil
	}
	headers, err := s.headers.GetHeaders()
	if err != nil {
		return err
	}
	var dict []string
	for name, values := range headers {
		if len(values) == 0 || name == "User-Agent" {
			continue
		}
		dict = append(dict, name, values[0])
	}
	if len(dict) > 0 {
		if _, err := p.SetExtraHeaders(dict); err != nil {
			return fmt.Errorf("设置请求头失败: %w", err)
		}
	}
	return nil
}

// CloseContainer 关闭容器标签页和所有残留弹窗
func (s *Session) CloseContainer(page resolver.Page) {
	s.mu.Lock()
	leftovers := make([]*rod.Page, 0, len(s.popups))
	for _, p := range s.popups {
		leftovers = append(leftovers, p)
	}
	s.popups = make(map[proto.TargetTargetID]*rod.Page)
	s.mu.Unlock()

	for _, p := range leftovers {
		if err := p.Close(); err != nil {
			utils.Debugf("关闭残留弹窗失败: %v", err)
		}
	}
	if len(leftovers) > 0 {
		utils.Debugf("关闭了 %d 个残留弹窗", len(leftovers))
	}

	if page != nil {
		// 保留一个空白标签页,关闭最后一个窗口会导致浏览器退出
		if s.browser != nil {
			if pages, err := s.browser.Pages(); err == nil && len(pages) <= 1 {
				if _, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"}); err != nil {
					utils.Debugf("创建空白标签页失败: %v", err)
				}
			}
		}
		if err := page.Close(); err != nil {
			utils.Debugf("关闭容器标签页失败: %v", err)
		}
	}
}

// closeBlankTabs 关闭除 keep 之外的空白标签页
func (s *Session) closeBlankTabs(keep proto.TargetTargetID) {
	pages, err := s.browser.Pages()
	if err != nil {
		utils.Debugf("获取标签页列表失败: %v", err)
		return
	}
	for _, p := range pages {
		if p.TargetID == keep {
			continue
		}
		info, err := p.Info()
		if err != nil || info.URL != "about:blank" {
			continue
		}
		if err := p.Close(); err != nil {
			utils.Debugf("关闭空白标签页失败: %v", err)
		}
	}
}

func (s *Session) track(p *rod.Page) {
	s.mu.Lock()
	s.popups[p.TargetID] = p
	s.mu.Unlock()
}

func (s *Session) untrack(p *rod.Page) {
	s.mu.Lock()
	delete(s.popups, p.TargetID)
	s.mu.Unlock()
}

// OpenPopups 当前未关闭的弹窗数量
func (s *Session) OpenPopups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.popups)
}

// RandomUserAgent 从池中随机选择一个User-Agent,池为空时返回空字符串
func RandomUserAgent(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.Intn(len(pool))]
}

package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
)

// gateMarkers 各类验证页面的 h2 标题文本
var gateMarkers = map[models.GateKind]string{
	models.GatePassword: "Password required",
	models.GateCaptcha:  "Security prompt",
}

// GateResolver 安全验证等待器
// 密码与验证码都需要用户在浏览器中手动完成,这里只负责有界等待
type GateResolver struct {
	page Page
	cfg  models.ResolverConfig
}

// NewGateResolver 创建验证等待器
func NewGateResolver(page Page, cfg models.ResolverConfig) *GateResolver {
	return &GateResolver{page: page, cfg: cfg}
}

// Present 检查当前页面是否处于指定验证状态
// 查询失败(例如提交密码后页面正在跳转)按仍在验证处理
func (g *GateResolver) Present(kind models.GateKind) bool {
	present, err := HasHeading(g.page, gateMarkers[kind])
	if err != nil {
		utils.Debugf("检查验证状态失败 [%s]: %v", kind, err)
		return true
	}
	return present
}

// Clear 等待验证解除
// 页面没有该验证时立即返回true; 超时返回false,由调用方决定是否终止容器
func (g *GateResolver) Clear(ctx context.Context, kind models.GateKind) bool {
	interval, timeout := g.limits(kind)

	if !g.Present(kind) {
		return true
	}

	switch kind {
	case models.GatePassword:
		utils.Warnf("🔒 检测到密码保护,请在浏览器中输入密码 (最多等待 %s)", timeout)
	case models.GateCaptcha:
		utils.Warnf("🧩 检测到验证码,请在浏览器中完成验证 (最多等待 %s)", timeout)
	}

	start := time.Now()
	cleared := Poll(ctx, interval, timeout, func() bool {
		return !g.Present(kind)
	})

	if cleared {
		utils.Infof("✅ 验证已解除 [%s], 耗时 %.1f秒", kind, time.Since(start).Seconds())
	} else {
		utils.Errorf("❌ 验证等待超时 [%s], 已等待 %.1f秒", kind, time.Since(start).Seconds())
	}
	return cleared
}

func (g *GateResolver) limits(kind models.GateKind) (interval, timeout time.Duration) {
	if kind == models.GatePassword {
		return g.cfg.PasswordInterval, g.cfg.PasswordTimeout
	}
	return g.cfg.CaptchaInterval, g.cfg.CaptchaTimeout
}

// HasHeading 页面中是否存在包含指定文本的 h2
func HasHeading(page Page, text string) (bool, error) {
	headings, err := page.QueryAll("h2")
	if err != nil {
		return false, err
	}
	for _, h := range headings {
		content, err := h.Text()
		if err != nil {
			continue
		}
		if strings.Contains(content, text) {
			return true, nil
		}
	}
	return false, nil
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// PassStatus 容器解析状态
type PassStatus string

const (
	PassStatusRunning   PassStatus = "running"   // 执行中
	PassStatusCompleted PassStatus = "completed" // 已完成
	PassStatusFailed    PassStatus = "failed"    // 失败
)

// BypassPlaceholder 绕过地址模板中的文件代码占位符
const BypassPlaceholder = "CODE-FILE"

// PassStats 单个容器的解析统计
type PassStats struct {
	TotalRows int     `json:"total_rows"` // 表格总行数
	Online    int     `json:"online"`     // 在线行数
	Matched   int     `json:"matched"`    // 通过提供商过滤的行数
	Skipped   int     `json:"skipped"`    // 命中存储而跳过解析的行数
	Resolved  int     `json:"resolved"`   // 成功解析的行数
	Failed    int     `json:"failed"`     // 解析失败的行数
	Bypassed  int     `json:"bypassed"`   // 生成绕过地址的行数
	Inserted  int     `json:"inserted"`   // 新写入存储的行数
	Duration  float64 `json:"duration"`   // 耗时(秒)
}

// AliasRule 提供商别名规则: 标签包含 Match 时归一为 Provider
type AliasRule struct {
	Match    string `mapstructure:"match" json:"match"`
	Provider string `mapstructure:"provider" json:"provider"`
}

// ResolverConfig 解析引擎配置
type ResolverConfig struct {
	SelectorWait     time.Duration `mapstructure:"selector_wait" json:"selector_wait"`         // 等待链接表格出现
	PopupWait        time.Duration `mapstructure:"popup_wait" json:"popup_wait"`               // 等待弹窗打开
	PageLoad         time.Duration `mapstructure:"page_load" json:"page_load"`                 // 等待弹窗加载
	PasswordTimeout  time.Duration `mapstructure:"password_timeout" json:"password_timeout"`   // 密码验证总等待
	PasswordInterval time.Duration `mapstructure:"password_interval" json:"password_interval"` // 密码验证轮询间隔
	CaptchaTimeout   time.Duration `mapstructure:"captcha_timeout" json:"captcha_timeout"`     // 验证码总等待
	CaptchaInterval  time.Duration `mapstructure:"captcha_interval" json:"captcha_interval"`   // 验证码轮询间隔
	BatchSize        int           `mapstructure:"batch_size" json:"batch_size"`               // 每批弹窗数量 (默认:8)
	BatchDelay       time.Duration `mapstructure:"batch_delay" json:"batch_delay"`             // 批次间延迟
	Aliases          []AliasRule   `mapstructure:"aliases" json:"aliases"`                     // 提供商别名表(按顺序匹配)
	BypassHost       string        `mapstructure:"bypass_host" json:"bypass_host"`             // 需要生成绕过地址的主机
	BypassPool       []string      `mapstructure:"bypass_pool" json:"bypass_pool"`             // 绕过地址模板池
}

// DefaultResolverConfig 默认解析配置
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		SelectorWait:     10 * time.Second,
		PopupWait:        5 * time.Second,
		PageLoad:         10 * time.Second,
		PasswordTimeout:  300 * time.Second,
		PasswordInterval: 5 * time.Second,
		CaptchaTimeout:   300 * time.Second,
		CaptchaInterval:  5 * time.Second,
		BatchSize:        8,
		BatchDelay:       time.Second,
		Aliases:          DefaultAliases(),
		BypassHost:       "pixeldrain.com",
		BypassPool:       DefaultBypassPool(),
	}
}

// DefaultAliases 默认别名表
func DefaultAliases() []AliasRule {
	hosts := []string{"send.cm", "sendit.cloud", "send.co", "send.now", "send.com", "send.cw"}
	rules := make([]AliasRule, 0, len(hosts))
	for _, h := range hosts {
		rules = append(rules, AliasRule{Match: h, Provider: "Send"})
	}
	return rules
}

// DefaultBypassPool 默认绕过地址池
func DefaultBypassPool() []string {
	return []string{
		"https://cdn.pd1.workers.dev/api/file/CODE-FILE",
		"https://cdn.pd6.workers.dev/api/file/CODE-FILE",
		"https://cdn.pd7.workers.dev/api/file/CODE-FILE",
		"https://cdn.pd8.workers.dev/api/file/CODE-FILE",
		"https://cdn.pd10.workers.dev/api/file/CODE-FILE",
		"https://cdn.pd3-gamedriveorg.workers.dev/api/file/CODE-FILE",
		"https://cdn.pd5-gamedriveorg.workers.dev/api/file/CODE-FILE",
		"https://cdn.pd9-gamedriveorg.workers.dev/api/file/CODE-FILE",
	}
}

// Validate 验证配置
func (c *ResolverConfig) Validate() error {
	if c.BatchSize < 1 || c.BatchSize > 32 {
		return fmt.Errorf("批次大小必须在1-32之间,当前值: %d", c.BatchSize)
	}
	waits := map[string]time.Duration{
		"selector_wait": c.SelectorWait,
		"popup_wait":    c.PopupWait,
		"page_load":     c.PageLoad,
	}
	for name, d := range waits {
		if d <= 0 {
			return fmt.Errorf("%s 必须大于0", name)
		}
	}
	if c.PasswordInterval <= 0 || c.CaptchaInterval <= 0 {
		return fmt.Errorf("验证轮询间隔必须大于0")
	}
	if c.PasswordTimeout < 0 || c.CaptchaTimeout < 0 {
		return fmt.Errorf("验证等待时间不能为负数")
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("批次间延迟不能为负数")
	}
	for i, tmpl := range c.BypassPool {
		if !strings.Contains(tmpl, BypassPlaceholder) {
			return fmt.Errorf("绕过地址模板第%d项缺少占位符 %s: %s", i+1, BypassPlaceholder, tmpl)
		}
	}
	for i, rule := range c.Aliases {
		if strings.TrimSpace(rule.Match) == "" || strings.TrimSpace(rule.Provider) == "" {
			return fmt.Errorf("别名规则第%d项不完整", i+1)
		}
	}
	return nil
}

package core

import (
	"net/http"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
)

const (
	// DefaultUserAgent 静态抓取使用的默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/134.0.0.0 Safari/537.36"
)

// HeaderManager 合并默认、配置文件和命令行的请求头部
// 实现 models.HeaderProvider, 同时供浏览器标签页和静态抓取器使用
type HeaderManager struct {
	policy *utils.HeaderPolicy

	defaults http.Header // 系统默认头部
	config   http.Header // 配置文件 headers 段
	cli      http.Header // 命令行 -H

	merged http.Header
}

// NewHeaderManager 创建头部管理器并验证所有头部
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		policy:   utils.NewHeaderPolicy(),
		defaults: defaultHeaders(),
		config:   make(http.Header),
		cli:      make(http.Header),
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	if err := hm.Validate(); err != nil {
		return nil, err
	}
	hm.merged = hm.merge()

	if len(hm.config)+len(hm.cli) > 0 {
		utils.Debugf("自定义HTTP头部: %s", hm.policy.Redact(hm.merged))
	}
	return hm, nil
}

func defaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": []string{"en-US,en;q=0.9"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// Validate 验证配置文件和命令行头部
func (hm *HeaderManager) Validate() error {
	if err := hm.policy.Validate(hm.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return err
	}
	if err := hm.policy.Validate(hm.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}
	return nil
}

// merge 按优先级合并 (default < config < cli)
func (hm *HeaderManager) merge() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetHeaders 实现 HeaderProvider 接口, 返回合并结果的副本
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	return hm.merged.Clone(), nil
}

// UserAgent 用户自定义的User-Agent
// 只使用默认值时返回空字符串,浏览器会从UA池中随机选择
func (hm *HeaderManager) UserAgent() string {
	if ua := hm.cli.Get("User-Agent"); ua != "" {
		return ua
	}
	return hm.config.Get("User-Agent")
}

// SafeHeaders 脱敏后的合并头部,用于日志
func (hm *HeaderManager) SafeHeaders() string {
	return hm.policy.Redact(hm.merged)
}

package utils

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
)

// MaxHeaderValueLength 头部值最大长度 (8KB)
const MaxHeaderValueLength = 8192

var (
	// ForbiddenHeaders 由浏览器或HTTP客户端管理的头部
	ForbiddenHeaders = []string{"Host", "Content-Length", "Transfer-Encoding", "Connection"}

	// SensitiveKeywords 需要在日志中脱敏的头部名称关键字
	SensitiveKeywords = []string{"authorization", "cookie", "token", "key", "secret", "password", "credential"}

	headerNamePattern  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValuePattern = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// HeaderPolicy 自定义头部的验证与日志脱敏
type HeaderPolicy struct {
	forbidden map[string]bool
	sensitive []string
}

// NewHeaderPolicy 创建默认策略
func NewHeaderPolicy() *HeaderPolicy {
	forbidden := make(map[string]bool, len(ForbiddenHeaders))
	for _, h := range ForbiddenHeaders {
		forbidden[strings.ToLower(h)] = true
	}
	return &HeaderPolicy{forbidden: forbidden, sensitive: SensitiveKeywords}
}

// Check 验证单个头部
func (p *HeaderPolicy) Check(name, value string) error {
	switch {
	case name == "":
		return &models.ValidationError{Field: "name", HeaderName: name, Reason: "头部名称不能为空"}
	case p.forbidden[strings.ToLower(name)]:
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "此头部由浏览器自动管理,不允许自定义",
			Suggestion: fmt.Sprintf("移除 '%s' 头部配置", name),
		}
	case !headerNamePattern.MatchString(name):
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称包含非法字符 (仅允许字母、数字和连字符)",
			Suggestion: "如 'Referer', 'X-Custom-Header'",
		}
	case len(value) > MaxHeaderValueLength:
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), MaxHeaderValueLength),
		}
	case !headerValuePattern.MatchString(value):
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     "头部值包含非法字符 (仅允许可打印ASCII字符)",
			Suggestion: "移除控制字符和非ASCII字符",
		}
	}
	return nil
}

// Validate 验证所有头部,返回合并后的全部错误
func (p *HeaderPolicy) Validate(headers http.Header) error {
	var errs []error
	for _, name := range sortedNames(headers) {
		for _, value := range headers[name] {
			if err := p.Check(name, value); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// IsSensitive 头部名称是否包含敏感关键字
func (p *HeaderPolicy) IsSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range p.sensitive {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// RedactValue 脱敏单个头部值
func (p *HeaderPolicy) RedactValue(name, value string) string {
	if !p.IsSensitive(name) {
		return value
	}
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// Redact 返回 "Name: value" 形式的脱敏字符串,按名称排序
func (p *HeaderPolicy) Redact(headers http.Header) string {
	parts := make([]string, 0, len(headers))
	for _, name := range sortedNames(headers) {
		if len(headers[name]) == 0 {
			continue
		}
		parts = append(parts, name+": "+p.RedactValue(name, headers[name][0]))
	}
	return strings.Join(parts, ", ")
}

func sortedNames(headers http.Header) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

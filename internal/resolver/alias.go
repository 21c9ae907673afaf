package resolver

import (
	"strings"
	"unicode"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
)

// ProviderAliases 有序的别名表, 多个镜像域名归为同一个提供商
type ProviderAliases []models.AliasRule

// Canonical 返回规范化的提供商名称
// 按顺序不区分大小写地做子串匹配,第一个命中的规则生效;
// 都不命中时返回首字母大写的原始标签
func (a ProviderAliases) Canonical(label string) string {
	lowered := strings.ToLower(strings.TrimSpace(label))
	if lowered == "" {
		return models.SentinelNA
	}

	for _, rule := range a {
		if strings.Contains(lowered, strings.ToLower(rule.Match)) {
			return rule.Provider
		}
	}
	return capitalize(lowered)
}

// capitalize 首字母大写,其余小写
func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

package resolver

import (
	"net/url"
	"strings"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
)

// BypassRotator 轮询绕过地址池
// 计数器属于单次解析调用,在该次调用的所有批次间持续递增
type BypassRotator struct {
	host string
	pool []string
	next int
}

// NewBypassRotator 创建轮询器
func NewBypassRotator(host string, pool []string) *BypassRotator {
	return &BypassRotator{
		host: strings.ToLower(strings.TrimSpace(host)),
		pool: pool,
	}
}

// Eligible 判断下载地址是否需要生成绕过地址,返回文件代码
func (r *BypassRotator) Eligible(downloadURL string) (fileCode string, ok bool) {
	if r.host == "" {
		return "", false
	}
	parsed, err := url.Parse(downloadURL)
	if err != nil || !strings.Contains(strings.ToLower(parsed.Host), r.host) {
		return "", false
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	code := segments[len(segments)-1]
	if code == "" {
		return "", false
	}
	return code, true
}

// Rewrite 用池中下一个模板生成绕过地址
// 第i次(从0开始)调用使用 pool[i mod N]; 池为空时返回 "N/A"
func (r *BypassRotator) Rewrite(fileCode string) string {
	if len(r.pool) == 0 {
		return models.SentinelNA
	}
	tmpl := r.pool[r.next%len(r.pool)]
	r.next++
	return strings.ReplaceAll(tmpl, models.BypassPlaceholder, fileCode)
}

// Apply 根据下载地址返回绕过地址,不适用时返回 "N/A"
func (r *BypassRotator) Apply(downloadURL string) string {
	code, ok := r.Eligible(downloadURL)
	if !ok {
		return models.SentinelNA
	}
	return r.Rewrite(code)
}

// Used 已生成的绕过地址数量
func (r *BypassRotator) Used() int {
	return r.next
}

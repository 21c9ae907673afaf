package models

import (
	"strings"
)

const (
	// SentinelNA 缺失字段占位值
	SentinelNA = "N/A"

	// SentinelError 解析失败占位值
	SentinelError = "ERROR"

	// StatusOffline 状态列缺失时的默认值
	StatusOffline = "offline"
)

// LinkKey 链接的自然主键
// 由 (title, provider, containerCode) 三元组小写+去空白后组成,
// 存储、预过滤、合并以及表格导出去重都使用同一个键
type LinkKey struct {
	Title         string
	Provider      string
	ContainerCode string
}

// NewLinkKey 规范化三元组并生成主键
func NewLinkKey(title, provider, containerCode string) LinkKey {
	return LinkKey{
		Title:         normalizeKeyPart(title),
		Provider:      normalizeKeyPart(provider),
		ContainerCode: normalizeKeyPart(containerCode),
	}
}

// String 返回用于map键和日志的字符串形式
func (k LinkKey) String() string {
	return k.Title + "|" + k.Provider + "|" + k.ContainerCode
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LinkCandidate 容器页面中的一行链接
// 行内的下载按钮句柄不属于该结构,由resolver包按行号单独保存
type LinkCandidate struct {
	Index         int    `json:"-"`              // 枚举顺序中的行号
	Title         string `json:"title"`          // 原始标题,可能为 "N/A"
	Provider      string `json:"provider"`       // 规范化后的提供商名称
	Size          string `json:"size"`           // 原始大小文本 (GB/MB/KB)
	Status        string `json:"status"`         // 在线状态标记
	ContainerCode string `json:"container_code"` // 容器代码
}

// Key 返回候选行的主键
func (c LinkCandidate) Key() LinkKey {
	return NewLinkKey(c.Title, c.Provider, c.ContainerCode)
}

// IsOnline 判断状态标记是否为在线
func (c LinkCandidate) IsOnline() bool {
	return strings.Contains(strings.ToLower(c.Status), "online")
}

// ResolvedLink 解析完成的链接
type ResolvedLink struct {
	LinkCandidate
	DownloadURL    string `json:"download_url"`    // 弹窗最终地址,失败为 "ERROR"
	BypassURL      string `json:"bypass_url"`      // 绕过地址,不适用为 "N/A"
	ContainerTitle string `json:"container_title"` // 容器标题
}

// NewFailedLink 生成解析失败的记录
func NewFailedLink(c LinkCandidate, containerTitle string) ResolvedLink {
	return ResolvedLink{
		LinkCandidate:  c,
		DownloadURL:    SentinelError,
		BypassURL:      SentinelError,
		ContainerTitle: containerTitle,
	}
}

// Failed 是否解析失败
// 失败记录仍返回给调用方,但不应作为最终结果持久化
func (r ResolvedLink) Failed() bool {
	return r.DownloadURL == SentinelError
}

// HasBypass 是否存在可用的绕过地址
func (r ResolvedLink) HasBypass() bool {
	return r.BypassURL != "" && r.BypassURL != SentinelNA && r.BypassURL != SentinelError
}

// Persistable 过滤掉解析失败的记录
func Persistable(links []ResolvedLink) []ResolvedLink {
	result := make([]ResolvedLink, 0, len(links))
	for _, link := range links {
		if !link.Failed() {
			result = append(result, link)
		}
	}
	return result
}

// ResolveContainerTitle 容器标题为空或占位值时回退到容器代码
func ResolveContainerTitle(title, containerCode string) string {
	if !HasContainerTitle(title) {
		return containerCode
	}
	return strings.TrimSpace(title)
}

// HasContainerTitle 标题是否为页面提供的真实标题(非空且不是占位值)
func HasContainerTitle(title string) bool {
	switch strings.ToLower(strings.TrimSpace(title)) {
	case "", "n/a", "unknown":
		return false
	}
	return true
}

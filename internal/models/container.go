package models

import (
	"fmt"
	"math"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	// ContainerURLPrefix 容器页面URL前缀
	ContainerURLPrefix = "https://filecrypt.co/Container/"

	// ContainerURLSuffix 容器页面URL后缀
	ContainerURLSuffix = ".html"

	// UnknownTitle 页面未提供标题时的占位值
	UnknownTitle = "Unknown"
)

var sizePattern = regexp.MustCompile(`(?i)^(\d+\.?\d*)\s*(GB|MB|KB)`)

// ContainerInfo 容器页面的附加信息
type ContainerInfo struct {
	Code       string   `json:"code"`        // 容器代码
	Title      string   `json:"title"`       // 容器标题(缺失时回退为代码)
	TitleFound bool     `json:"title_found"` // 标题是否读取自页面
	TotalSize  string   `json:"total_size"`  // 所有行大小之和,如 "12.5 GB"
	Total      int      `json:"total"`       // 总行数
	Online     int      `json:"online"`      // 在线行数
	Providers  []string `json:"providers"`   // 页面中出现的提供商(已排序)
}

// ValidateContainerURL 验证容器URL格式
func ValidateContainerURL(rawURL string) error {
	if err := ValidateURL(rawURL); err != nil {
		return err
	}
	if !strings.HasPrefix(rawURL, ContainerURLPrefix) || !strings.HasSuffix(rawURL, ContainerURLSuffix) {
		return fmt.Errorf("不是有效的容器URL (应为 %s<code>%s): %s", ContainerURLPrefix, ContainerURLSuffix, rawURL)
	}
	return nil
}

// ParseContainerCode 从容器URL中解析容器代码
// 取路径最后一段并去掉 .html 后缀
func ParseContainerCode(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	segment := rawURL
	if err == nil && parsed.Path != "" {
		segment = path.Base(parsed.Path)
	} else if idx := strings.LastIndex(rawURL, "/"); idx >= 0 {
		segment = rawURL[idx+1:]
	}
	return strings.TrimSuffix(segment, ContainerURLSuffix)
}

// SizeInGB 将 "1.5 GB" / "700 MB" / "512 KB" 转换为GB
// 无法识别时返回 ok=false
func SizeInGB(sizeText string) (float64, bool) {
	match := sizePattern.FindStringSubmatch(strings.TrimSpace(sizeText))
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(match[2]) {
	case "MB":
		value /= 1024
	case "KB":
		value /= 1024 * 1024
	}
	return value, true
}

// TotalSize 汇总所有大小文本,保留两位小数
// 总和为0时返回 "N/A"
func TotalSize(sizes []string) string {
	total := 0.0
	for _, s := range sizes {
		if gb, ok := SizeInGB(s); ok {
			total += gb
		}
	}
	total = math.Round(total*100) / 100
	if total <= 0 {
		return SentinelNA
	}
	return strconv.FormatFloat(total, 'f', -1, 64) + " GB"
}

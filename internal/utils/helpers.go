package utils

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
)

// ReadURLsFromFile 从文件中读取容器URL列表
// 跳过空行、# 注释行以及不是容器地址的行
func ReadURLsFromFile(filepath string) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer file.Close()

	urls := make([]string, 0)
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := models.ValidateContainerURL(line); err != nil {
			Warnf("跳过无效URL (行 %d): %s - %v", lineNum, line, err)
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("URL文件中没有有效的URL")
	}

	Infof("从文件加载了 %d 个URL", len(urls))
	return urls, nil
}

const maxFilenameLength = 200

var (
	invalidFilenameChars = regexp.MustCompile(`[/\\:*?"<>|]`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
)

// SanitizeFilename 将容器标题转换为文件名 (不含扩展名)
// 标题无效或清理后为空时使用容器代码,两者都为空时为 "Untitled"
func SanitizeFilename(title, fallback string) string {
	if fallback == "" {
		fallback = "Untitled"
	}
	switch strings.ToLower(strings.TrimSpace(title)) {
	case "", "n/a", "unknown":
		Debugf("标题无效 (%q), 使用 %s 作为文件名", title, fallback)
		return fallback
	}

	cleaned := invalidFilenameChars.ReplaceAllString(strings.TrimSpace(title), "")
	cleaned = whitespaceRun.ReplaceAllString(cleaned, ".")
	if runes := []rune(cleaned); len(runes) > maxFilenameLength {
		cleaned = string(runes[:maxFilenameLength])
	}
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

var (
	seriesNoise = []*regexp.Regexp{
		regexp.MustCompile(`\[[^\]]*\]`),
		regexp.MustCompile(`(?i)\.(mkv|mp4|x264|x265|1080p|720p|480p)\b`),
	}
	seriesEpisode = regexp.MustCompile(`^(.*?S\d{2})(?:E\d{2,3})?`)
	dotRun        = regexp.MustCompile(`\.{2,}`)
)

// NormalizeSeriesTitle 清理剧集标题用于数据库列表展示
// 去掉方括号标签和常见的格式后缀,存在季号时截断到季号
func NormalizeSeriesTitle(title string) string {
	cleaned := title
	for _, re := range seriesNoise {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = dotRun.ReplaceAllString(strings.TrimSpace(cleaned), ".")
	cleaned = strings.Trim(cleaned, ". ")

	if m := seriesEpisode.FindStringSubmatch(cleaned); m != nil {
		return m[1]
	}
	return cleaned
}

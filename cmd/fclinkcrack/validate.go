package main

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/report"
)

// ValidateFlags 验证命令行标志
// batchSize 为0表示使用配置文件的值
func ValidateFlags(targetURL, urlFile string, batchSize int, outputMode string, delay time.Duration) error {
	if targetURL != "" && urlFile != "" {
		return fmt.Errorf("--url 和 --url-file 不能同时使用")
	}

	if targetURL != "" {
		if err := models.ValidateContainerURL(targetURL); err != nil {
			return fmt.Errorf("无效的容器URL: %w", err)
		}
	}

	if batchSize != 0 && (batchSize < 1 || batchSize > 32) {
		return fmt.Errorf("批次大小必须在1-32之间,当前值: %d", batchSize)
	}

	if outputMode != "" {
		if _, err := report.ParseMode(outputMode); err != nil {
			return err
		}
	}

	if delay < 0 || delay > 10*time.Minute {
		return fmt.Errorf("容器间延迟必须在0-10分钟之间,当前值: %s", delay)
	}

	return nil
}

// ValidateProbeTarget 验证 probe 命令的参数: 容器URL或本地HTML文件
func ValidateProbeTarget(target string, isFile bool) error {
	if target == "" {
		return fmt.Errorf("需要指定容器URL或HTML文件")
	}
	if isFile {
		return nil
	}
	return models.ValidateContainerURL(target)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/browser"
	"github.com/RecoveryAshes/FcLinkcrack/internal/core"
	"github.com/RecoveryAshes/FcLinkcrack/internal/resolver"
	"github.com/RecoveryAshes/FcLinkcrack/internal/store"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string
	headers    []string // 自定义HTTP请求头

	// 解析参数
	targetURL       string
	urlFile         string
	provider        string
	outputMode      string
	headless        bool
	batchSize       int
	batchDelay      time.Duration
	continueOnError bool

	// PersistentPreRunE 中加载
	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "fclinkcrack",
	Short: "filecrypt容器链接解析工具",
	Long: `FcLinkcrack - filecrypt 容器下载链接批量解析工具

功能:
  • 等待密码/验证码人工解除后枚举链接表格
  • 按提供商过滤,分批并发打开下载弹窗
  • 为 pixeldrain 链接生成绕过地址
  • SQLite 去重存储,已解析的链接不再重复点击
  • 导出 Excel 工作簿 (汇总 / 按容器 / 两者)

示例:
  fclinkcrack -u https://filecrypt.co/Container/ABC123.html -p send
  fclinkcrack -f urls.txt --output-mode both --batch-size 4
  fclinkcrack db list
  fclinkcrack probe saved_page.html

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		logConfig := config.Logging
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if verbose {
			logConfig.Level = "debug"
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		appConfig = config
		return nil
	},
	RunE: runScrape,
}

func runScrape(cmd *cobra.Command, args []string) error {
	if targetURL == "" && urlFile == "" {
		return cmd.Help()
	}

	if err := ValidateFlags(targetURL, urlFile, batchSize, outputMode, batchDelay); err != nil {
		return err
	}

	var headlessFlag, continueFlag *bool
	if cmd.Flags().Changed("headless") {
		headlessFlag = &headless
	}
	if cmd.Flags().Changed("continue-on-error") {
		continueFlag = &continueOnError
	}
	delay := time.Duration(-1)
	if cmd.Flags().Changed("delay") {
		delay = batchDelay
	}
	appConfig.MergeCLIFlags(headlessFlag, batchSize, outputMode, delay, continueFlag)
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}

	urls := []string{targetURL}
	if urlFile != "" {
		var err error
		if urls, err = utils.ReadURLsFromFile(urlFile); err != nil {
			return fmt.Errorf("读取URL文件失败: %w", err)
		}
	}

	headerManager, err := core.NewHeaderManager(appConfig.Headers, headers)
	if err != nil {
		return fmt.Errorf("HTTP头部配置无效: %w", err)
	}
	utils.Debugf("HTTP头部: %s", headerManager.SafeHeaders())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, appConfig.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	session := browser.NewSession(appConfig.Browser, headerManager)
	if err := session.Start(); err != nil {
		return err
	}
	defer session.Close()

	monitor := browser.NewResourceMonitor(appConfig.Resource)
	runner := core.NewRunner(core.RunnerOptions{
		Config:   appConfig,
		Opener:   session,
		Store:    st,
		Provider: provider,
		Out:      os.Stdout,
		Engine: []resolver.Option{
			resolver.WithBatchLimiter(monitor),
			resolver.WithProgress(func(total int, description string) resolver.Progress {
				return utils.NewProgressBar(total, description)
			}),
		},
	})

	if len(urls) == 1 {
		result, err := runner.Run(ctx, urls[0])
		if err != nil {
			return fmt.Errorf("解析失败: %w", err)
		}
		utils.RenderLinks(os.Stdout, result.Links)
		utils.Info("✨ 解析完成!")
		return nil
	}

	if _, err := core.NewBatchRunner(runner, session, appConfig.Batch, os.Stdout).RunAll(ctx, urls); err != nil {
		return fmt.Errorf("批量处理失败: %w", err)
	}
	utils.Info("✨ 批量处理完成!")
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("FcLinkcrack %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", nil, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "只处理指定提供商,如 send, rapidgator")

	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "容器URL (必需,除非使用 --url-file)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含容器URL列表的文件")
	rootCmd.Flags().StringVar(&outputMode, "output-mode", "", "输出模式 (all|individual|both|db)")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "无头浏览器模式 (需要人工验证时不要开启)")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 0, "每批同时打开的弹窗数量 (1-32)")
	rootCmd.Flags().DurationVar(&batchDelay, "delay", 3*time.Second, "容器之间的等待时间")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "单个容器失败后继续处理")

	rootCmd.AddCommand(versionCmd, newDBCmd(), newProbeCmd(), newDoctorCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

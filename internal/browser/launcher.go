package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// Options 浏览器启动配置
type Options struct {
	Headless          bool          `mapstructure:"headless"`            // 无头模式
	UserDataDir       string        `mapstructure:"user_data_dir"`       // 持久化用户目录
	Bin               string        `mapstructure:"bin"`                 // 浏览器可执行文件,为空时自动查找
	Args              []string      `mapstructure:"args"`                // 额外启动参数,如 --disable-webgl
	IgnoreDefaultArgs []string      `mapstructure:"ignore_default_args"` // 从默认参数中移除
	Extensions        []string      `mapstructure:"extensions"`          // 解压后的扩展目录
	UserAgents        []string      `mapstructure:"user_agents"`         // 随机选用的User-Agent
	OpenRetries       int           `mapstructure:"open_retries"`        // 打开容器页面的重试次数
	RetryDelay        time.Duration `mapstructure:"retry_delay"`         // 重试间隔
	NavigateTimeout   time.Duration `mapstructure:"navigate_timeout"`    // 容器页面加载超时
}

// DefaultOptions 默认启动配置
func DefaultOptions() Options {
	return Options{
		Headless:    false,
		UserDataDir: "./profile",
		Args: []string{
			"--disable-component-update",
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-webgl",
			"--disable-blink-features=AutomationControlled",
			"--disable-infobars",
		},
		IgnoreDefaultArgs: []string{"--enable-automation", "--disable-extensions"},
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:136.0) Gecko/20100101 Firefox/136.0",
		},
		OpenRetries:     3,
		RetryDelay:      2 * time.Second,
		NavigateTimeout: 15 * time.Second,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.OpenRetries < 1 || o.OpenRetries > 10 {
		return fmt.Errorf("打开重试次数必须在1-10之间,当前值: %d", o.OpenRetries)
	}
	if o.NavigateTimeout <= 0 {
		return fmt.Errorf("navigate_timeout 必须大于0")
	}
	if o.RetryDelay < 0 {
		return fmt.Errorf("retry_delay 不能为负数")
	}
	return nil
}

// ParseFlag 将 "--name=value" 形式的参数拆分为rod的启动标志
func ParseFlag(arg string) (flags.Flag, []string) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return flags.Flag(name), nil
	}
	return flags.Flag(name), []string{value}
}

// ExistingExtensions 过滤出存在的扩展目录并转换为绝对路径
func ExistingExtensions(paths []string) []string {
	var result []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			result = append(result, abs)
		} else {
			utils.Warnf("扩展目录不存在,已忽略: %s", p)
		}
	}
	return result
}

// LookupBrowser 查找浏览器可执行文件
// bin 非空时只检查该路径; 否则在系统中查找已安装的Chrome/Chromium
// 都找不到时由rod在首次启动时自动下载
func LookupBrowser(bin string) (string, bool) {
	if bin != "" {
		if _, err := os.Stat(bin); err != nil {
			return bin, false
		}
		return bin, true
	}
	return launcher.LookPath()
}

// NewLauncher 按配置构建启动器
func NewLauncher(opts Options) *launcher.Launcher {
	l := launcher.New().
		Headless(opts.Headless).
		Set("ignore-certificate-errors")

	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}

	if bin, ok := LookupBrowser(opts.Bin); ok {
		l = l.Bin(bin)
	} else if opts.Bin != "" {
		utils.Warnf("浏览器路径不存在,将使用自动下载的浏览器: %s", opts.Bin)
	}

	for _, arg := range opts.IgnoreDefaultArgs {
		name, _ := ParseFlag(arg)
		l = l.Delete(name)
	}
	for _, arg := range opts.Args {
		name, values := ParseFlag(arg)
		l = l.Set(name, values...)
	}

	if exts := ExistingExtensions(opts.Extensions); len(exts) > 0 {
		joined := strings.Join(exts, ",")
		l = l.Set("disable-extensions-except", joined).
			Set("load-extension", joined)
		utils.Debugf("加载扩展: %s", joined)
	}

	return l
}

// Launch 启动并连接浏览器
func Launch(opts Options) (*rod.Browser, *launcher.Launcher, error) {
	l := NewLauncher(opts)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return browser, l, nil
}

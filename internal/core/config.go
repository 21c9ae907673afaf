package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/browser"
	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/report"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 如 FCLINK_RESOLVER_BATCH_SIZE
const EnvPrefix = "FCLINK"

// Config 应用程序配置
type Config struct {
	Resolver models.ResolverConfig  `mapstructure:"resolver"`
	Browser  browser.Options        `mapstructure:"browser"`
	Resource browser.ResourceConfig `mapstructure:"resource"`
	Store    StoreConfig            `mapstructure:"store"`
	Output   OutputConfig           `mapstructure:"output"`
	Batch    BatchConfig            `mapstructure:"batch"`
	Logging  utils.LogConfig        `mapstructure:"logging"`
	Headers  map[string]string      `mapstructure:"headers"`
}

// StoreConfig 存储配置
type StoreConfig struct {
	Path string `mapstructure:"path"` // sqlite数据库文件
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir  string `mapstructure:"dir"`
	Mode string `mapstructure:"mode"` // all, individual, both, db
}

// BatchConfig 批量处理配置
type BatchConfig struct {
	Delay           time.Duration `mapstructure:"delay"`             // 容器之间的等待时间
	ContinueOnError bool          `mapstructure:"continue_on_error"` // 单个容器失败后继续
}

// LoadConfig 加载配置文件
// configPath 为空时在 ./configs, . 和 ~/.fclinkcrack 中查找 config.yaml, 找不到时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.Warnf("加载 .env 失败: %v", err)
	}

	v := viper.New()
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".fclinkcrack"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		utils.Debugf("未找到配置文件,使用默认配置")
	} else {
		utils.Debugf("已加载配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置失败: %w", err)}
	}

	return &config, nil
}

// DefaultConfig 不读取任何文件的默认配置
func DefaultConfig() *Config {
	return &Config{
		Resolver: models.DefaultResolverConfig(),
		Browser:  browser.DefaultOptions(),
		Resource: browser.DefaultResourceConfig(),
		Store:    StoreConfig{Path: "data/links.db"},
		Output:   OutputConfig{Dir: "output", Mode: string(report.ModeAll)},
		Batch:    BatchConfig{Delay: 3 * time.Second, ContinueOnError: true},
		Logging:  utils.DefaultLogConfig(),
		Headers:  map[string]string{},
	}
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("resolver.selector_wait", d.Resolver.SelectorWait)
	v.SetDefault("resolver.popup_wait", d.Resolver.PopupWait)
	v.SetDefault("resolver.page_load", d.Resolver.PageLoad)
	v.SetDefault("resolver.password_timeout", d.Resolver.PasswordTimeout)
	v.SetDefault("resolver.password_interval", d.Resolver.PasswordInterval)
	v.SetDefault("resolver.captcha_timeout", d.Resolver.CaptchaTimeout)
	v.SetDefault("resolver.captcha_interval", d.Resolver.CaptchaInterval)
	v.SetDefault("resolver.batch_size", d.Resolver.BatchSize)
	v.SetDefault("resolver.batch_delay", d.Resolver.BatchDelay)
	v.SetDefault("resolver.aliases", d.Resolver.Aliases)
	v.SetDefault("resolver.bypass_host", d.Resolver.BypassHost)
	v.SetDefault("resolver.bypass_pool", d.Resolver.BypassPool)

	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.user_data_dir", d.Browser.UserDataDir)
	v.SetDefault("browser.bin", d.Browser.Bin)
	v.SetDefault("browser.args", d.Browser.Args)
	v.SetDefault("browser.ignore_default_args", d.Browser.IgnoreDefaultArgs)
	v.SetDefault("browser.extensions", d.Browser.Extensions)
	v.SetDefault("browser.user_agents", d.Browser.UserAgents)
	v.SetDefault("browser.open_retries", d.Browser.OpenRetries)
	v.SetDefault("browser.retry_delay", d.Browser.RetryDelay)
	v.SetDefault("browser.navigate_timeout", d.Browser.NavigateTimeout)

	v.SetDefault("resource.reserve_mb", d.Resource.ReserveMB)
	v.SetDefault("resource.popup_mb", d.Resource.PopupMB)
	v.SetDefault("resource.max_popups", d.Resource.MaxPopups)
	v.SetDefault("resource.cpu_threshold", d.Resource.CPUThreshold)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.mode", d.Output.Mode)

	v.SetDefault("batch.delay", d.Batch.Delay)
	v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.LogDir)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.no_color", d.Logging.NoColor)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	if c.Resource.ReserveMB < 0 || c.Resource.PopupMB < 0 || c.Resource.MaxPopups < 0 {
		return fmt.Errorf("resource: 数值不能为负数")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path 不能为空")
	}
	if _, err := report.ParseMode(c.Output.Mode); err != nil {
		return fmt.Errorf("output.mode: %w", err)
	}
	if c.Batch.Delay < 0 {
		return fmt.Errorf("batch.delay 不能为负数")
	}
	return nil
}

// OutputMode 解析后的输出模式
func (c *Config) OutputMode() report.Mode {
	mode, err := report.ParseMode(c.Output.Mode)
	if err != nil {
		return report.ModeAll
	}
	return mode
}

// MergeCLIFlags 合并命令行参数到配置
// nil、空字符串、batchSize<=0 和负的 delay 表示未指定,保留配置文件中的值
func (c *Config) MergeCLIFlags(headless *bool, batchSize int, outputMode string, delay time.Duration, continueOnError *bool) {
	if headless != nil {
		c.Browser.Headless = *headless
	}
	if batchSize > 0 {
		c.Resolver.BatchSize = batchSize
	}
	if outputMode != "" {
		c.Output.Mode = outputMode
	}
	if delay >= 0 {
		c.Batch.Delay = delay
	}
	if continueOnError != nil {
		c.Batch.ContinueOnError = *continueOnError
	}
}

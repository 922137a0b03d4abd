package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nerdneilsfield/go-enhance-ocr/pkg/endpoints"
	"github.com/nerdneilsfield/go-enhance-ocr/pkg/ocr"
)

// 配置文件目录名和环境变量前缀
const (
	appName   = "enhance-ocr"
	envPrefix = "ENHANCE_OCR"
)

// 工作线程数的允许范围
const (
	minWorkers = 1
	maxWorkers = 100
)

// Config 应用程序配置
type Config struct {
	// 服务地址
	OAIBaseURL        string `mapstructure:"oai_base_url"`
	ImagingServiceURL string `mapstructure:"imaging_service_url"`
	OCRServiceURL     string `mapstructure:"ocr_service_url"`
	ResolverURL       string `mapstructure:"resolver_url"`

	// 处理配置
	Workers             int           `mapstructure:"workers"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	MaxArticles         int           `mapstructure:"max_articles"`
	FetchTimeout        time.Duration `mapstructure:"fetch_timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	ShowProgress        bool          `mapstructure:"show_progress"`

	// HTTP服务配置
	ListenAddr string `mapstructure:"listen_addr"`

	// 日志配置
	LogLevel  string `mapstructure:"log_level"`
	LogFile   string `mapstructure:"log_file"`
	LogFormat string `mapstructure:"log_format"`
}

// Endpoints 返回配置中的服务地址
func (c *Config) Endpoints() endpoints.Endpoints {
	return endpoints.Endpoints{
		OAIBaseURL:        c.OAIBaseURL,
		ImagingServiceURL: c.ImagingServiceURL,
		OCRServiceURL:     c.OCRServiceURL,
		ResolverURL:       c.ResolverURL,
	}
}

// ProcessOptions 返回对应的处理选项
func (c *Config) ProcessOptions() ocr.ProcessOptions {
	return ocr.ProcessOptions{
		Workers:             c.Workers,
		ConfidenceThreshold: c.ConfidenceThreshold,
		MaxArticles:         c.MaxArticles,
	}
}

// LoadConfig 从viper加载配置
func LoadConfig() (*Config, error) {
	loadDotEnv()

	// 设置默认值
	setDefaults()

	// 尝试从配置文件加载
	if err := loadConfigFile(); err != nil {
		// 如果找不到配置文件，创建一个默认配置
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if err := createDefaultConfig(); err != nil {
				return nil, fmt.Errorf("无法创建默认配置: %w", err)
			}
		} else {
			return nil, fmt.Errorf("加载配置文件出错: %w", err)
		}
	}

	// 从环境变量加载配置
	loadFromEnv()

	return unmarshal()
}

// LoadConfigFromFile 从指定路径加载配置文件
func LoadConfigFromFile(configPath string) (*Config, error) {
	loadDotEnv()
	setDefaults()

	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	loadFromEnv()

	return unmarshal()
}

func unmarshal() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置出错: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadDotEnv 加载当前目录下的.env文件，文件不存在时忽略
func loadDotEnv() {
	_ = godotenv.Load()
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("oai_base_url", endpoints.DefaultOAIBaseURL)
	viper.SetDefault("imaging_service_url", endpoints.DefaultImagingServiceURL)
	viper.SetDefault("ocr_service_url", endpoints.DefaultOCRServiceURL)
	viper.SetDefault("resolver_url", endpoints.DefaultResolverURL)
	viper.SetDefault("workers", ocr.DefaultWorkers)
	viper.SetDefault("confidence_threshold", ocr.DefaultConfidenceThreshold)
	viper.SetDefault("max_articles", ocr.DefaultMaxArticles)
	viper.SetDefault("fetch_timeout", "2m")
	viper.SetDefault("max_retries", 0)
	viper.SetDefault("show_progress", true)
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_file", "")
	viper.SetDefault("log_format", "console")
}

// loadConfigFile 尝试加载配置文件
func loadConfigFile() error {
	// 设置配置文件名称
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	// 添加配置文件路径
	// 1. 当前工作目录
	viper.AddConfigPath(".")

	// 2. 用户配置目录
	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".config", appName))
	}

	// 3. 系统配置目录
	viper.AddConfigPath(filepath.Join("/etc", appName))

	// 加载配置文件
	return viper.ReadInConfig()
}

// createDefaultConfig 在用户配置目录写入默认配置文件
func createDefaultConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".config", appName)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(GetDefaultConfig()), 0o644)
}

// loadFromEnv 从环境变量加载配置，例如 ENHANCE_OCR_WORKERS
func loadFromEnv() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	if config.Workers < minWorkers || config.Workers > maxWorkers {
		return fmt.Errorf("workers 必须在 %d 到 %d 之间，当前为 %d", minWorkers, maxWorkers, config.Workers)
	}

	if config.ConfidenceThreshold < 0 || config.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold 必须在 0 到 1 之间，当前为 %g", config.ConfidenceThreshold)
	}

	if config.MaxArticles < 1 {
		return fmt.Errorf("max_articles 必须大于 0，当前为 %d", config.MaxArticles)
	}

	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries 不能为负数")
	}

	if config.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout 必须为正数")
	}

	for key, value := range map[string]string{
		"oai_base_url":        config.OAIBaseURL,
		"imaging_service_url": config.ImagingServiceURL,
		"ocr_service_url":     config.OCRServiceURL,
		"resolver_url":        config.ResolverURL,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s 不能为空", key)
		}
	}

	return nil
}

// GetDefaultConfig 返回默认配置文件内容
func GetDefaultConfig() string {
	return `# Enhance OCR 配置文件

# 服务地址
oai_base_url = "` + endpoints.DefaultOAIBaseURL + `"
imaging_service_url = "` + endpoints.DefaultImagingServiceURL + `"
ocr_service_url = "` + endpoints.DefaultOCRServiceURL + `"  # 图像URL直接拼接在末尾
resolver_url = "` + endpoints.DefaultResolverURL + `"

# 处理配置
workers = 20  # 并发请求数，1-100
confidence_threshold = 0.8  # 文档OCR置信度高于该值时不重新识别
max_articles = 6  # 每次请求最多处理的文章数
fetch_timeout = "2m"  # 单次请求超时时间
max_retries = 0  # 0 表示每个URL只请求一次
show_progress = true  # 在终端中显示进度条

# HTTP服务配置
listen_addr = ":8080"

# 日志配置
log_level = "info"  # debug, info, warn, error
log_file = ""      # 留空表示输出到标准错误
log_format = "console"  # console 或 json
`
}

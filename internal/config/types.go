package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/pagecache/internal/pagecache"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 运行环境，只有 development 会挂载管理控制台。
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config 是 TOML 文件映射的整体结构，所有字段位于顶层。
type Config struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	CacheDir     string `mapstructure:"CacheDir"`
	AppendStatus bool   `mapstructure:"AppendStatus"`
	BaseURL      string `mapstructure:"BaseURL"`
	ServeCached  bool   `mapstructure:"ServeCached"`

	Environment   string   `mapstructure:"Environment"`
	OriginURL     string   `mapstructure:"OriginURL"`
	OriginTimeout Duration `mapstructure:"OriginTimeout"`
	SelfTestURL   string   `mapstructure:"SelfTestURL"`
}

// IsDevelopment 表示是否允许访问管理控制台。
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// HasOrigin 表示是否配置了回源渲染服务。
func (c *Config) HasOrigin() bool {
	return strings.TrimSpace(c.OriginURL) != ""
}

// CacheOptions 将配置转换为 pagecache.Options，缓存目录通过显式参数传递。
func (c *Config) CacheOptions() pagecache.Options {
	return pagecache.Options{
		CacheDir:     c.CacheDir,
		AppendStatus: c.AppendStatus,
		BaseURL:      c.BaseURL,
	}
}

// EffectiveSelfTestURL 返回控制台自检请求的基础地址，未配置时回退到本机监听端口。
func (c *Config) EffectiveSelfTestURL() string {
	if raw := strings.TrimRight(strings.TrimSpace(c.SelfTestURL), "/"); raw != "" {
		return raw
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.ListenPort)
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		return newFieldError("CacheDir", "不能为空")
	}
	if filepath.Clean(c.CacheDir) == string(filepath.Separator) {
		return newFieldError("CacheDir", "不能指向文件系统根目录")
	}
	if c.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if c.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return newFieldError("Environment", "仅支持 development/production")
	}

	if c.OriginURL != "" {
		if err := validateHTTPURL(c.OriginURL); err != nil {
			return fmt.Errorf("OriginURL: %w", err)
		}
		if c.OriginTimeout.DurationValue() <= 0 {
			return newFieldError("OriginTimeout", "必须大于 0")
		}
	}
	if c.SelfTestURL != "" {
		if err := validateHTTPURL(c.SelfTestURL); err != nil {
			return fmt.Errorf("SelfTestURL: %w", err)
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}

package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pagecache/internal/config"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// StartupFields 在 BaseFields 基础上附加缓存根目录与运行环境，
// 启动与 check-config 日志共用，便于确认前端重写规则指向的目录。
func StartupFields(action, configPath string, cfg *config.Config) logrus.Fields {
	fields := BaseFields(action, configPath)
	if cfg == nil {
		return fields
	}
	fields["cache_dir"] = cfg.CacheDir
	fields["append_status"] = cfg.AppendStatus
	fields["serve_cached"] = cfg.ServeCached
	fields["environment"] = cfg.Environment
	if cfg.HasOrigin() {
		fields["origin"] = cfg.OriginURL
	}
	return fields
}

// RequestFields 提供 uri/method/命中状态字段，供页面缓存请求日志复用。
func RequestFields(uri, method, requestID string, cacheHit bool) logrus.Fields {
	fields := logrus.Fields{
		"uri":       uri,
		"method":    method,
		"cache_hit": cacheHit,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// CacheFields 描述一次缓存文件操作，path 为磁盘上的 index.html。
func CacheFields(action, uri, path string) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"uri":    uri,
		"path":   path,
	}
}

package routes

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/pagecache/internal/pagecache"
	"github.com/any-hub/pagecache/internal/version"
)

// StatusOptions 描述诊断接口需要暴露的运行时信息。
type StatusOptions struct {
	Environment string
	ServeCached bool
	// AllowPurge 控制是否开放 DELETE /-/status/page，仅建议在开发环境开启。
	AllowPurge bool
}

// RegisterStatusRoutes 暴露 /-/status 诊断接口，供运维查询缓存目录与单个页面的缓存状态。
func RegisterStatusRoutes(app *fiber.App, cache *pagecache.Cache, opts StatusOptions) {
	if app == nil || cache == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(statusPayload{
			CacheDir:     cache.Root(),
			AppendStatus: cache.AppendStatus(),
			ServeCached:  opts.ServeCached,
			Environment:  opts.Environment,
			Version:      version.Full(),
		})
	})

	app.Get("/-/status/page", func(c fiber.Ctx) error {
		uri, path, code := resolvePage(c, cache)
		if code != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": code})
		}
		payload := pagePayload{URI: uri, Path: path}

		data, err := cache.Lookup(uri)
		switch {
		case err == nil:
			payload.Cached = true
			payload.SizeBytes = len(data)
			if created, ok := pagecache.ParseStatus(data); ok {
				payload.Created = created
			}
		case errors.Is(err, pagecache.ErrNotFound):
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_read_failed"})
		}
		return c.JSON(payload)
	})

	if !opts.AllowPurge {
		return
	}

	app.Delete("/-/status/page", func(c fiber.Ctx) error {
		uri, path, code := resolvePage(c, cache)
		if code != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": code})
		}
		purged, err := cache.Purge(uri)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_purge_failed"})
		}
		return c.JSON(fiber.Map{"uri": uri, "path": path, "purged": purged})
	})
}

type statusPayload struct {
	CacheDir     string `json:"cache_dir"`
	AppendStatus bool   `json:"append_status"`
	ServeCached  bool   `json:"serve_cached"`
	Environment  string `json:"environment"`
	Version      string `json:"version"`
}

type pagePayload struct {
	URI       string `json:"uri"`
	Path      string `json:"path"`
	Cached    bool   `json:"cached"`
	SizeBytes int    `json:"size_bytes"`
	Created   string `json:"created,omitempty"`
}

// resolvePage 读取 uri 查询参数并解析为缓存文件路径，失败时返回错误码。
func resolvePage(c fiber.Ctx, cache *pagecache.Cache) (string, string, string) {
	uri := strings.TrimSpace(c.Query("uri"))
	if uri == "" {
		return "", "", "uri_required"
	}
	path, err := cache.Path(uri)
	if err != nil {
		return "", "", "invalid_uri"
	}
	return uri, path, ""
}

package origin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pagecache/internal/logging"
	"github.com/any-hub/pagecache/internal/pagecache"
	"github.com/any-hub/pagecache/internal/server"
)

// Handler 负责 "回源渲染 → 写入页面缓存 → 返回响应" 的流程，
// 内部复用共享 http.Client 与页面缓存。
type Handler struct {
	client *http.Client
	logger *logrus.Logger
	cache  *pagecache.Cache
	origin *url.URL
}

// NewHandler constructs an origin handler for the renderer at originURL.
func NewHandler(client *http.Client, logger *logrus.Logger, cache *pagecache.Cache, originURL string) (*Handler, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if cache == nil {
		return nil, errors.New("page cache is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(originURL))
	if err != nil {
		return nil, fmt.Errorf("parse origin url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("origin url must be absolute: %s", originURL)
	}
	return &Handler{
		client: client,
		logger: logger,
		cache:  cache,
		origin: parsed,
	}, nil
}

// Handle 实现 fiber.Handler：转发请求、回写响应，并在可缓存时写入页面缓存。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	uri := c.Path()

	target := h.resolveURL(c)
	req, err := h.buildRequest(c, target)
	if err != nil {
		h.logResult(uri, c.Method(), target.String(), requestID, 0, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "origin_failed")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logResult(uri, c.Method(), target.String(), requestID, 0, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "origin_failed")
	}
	defer resp.Body.Close()

	copyResponseHeaders(c, resp.Header)
	c.Set(server.HeaderCacheHit, "false")
	c.Status(resp.StatusCode)

	if c.Method() == http.MethodHead {
		h.logResult(uri, c.Method(), target.String(), requestID, resp.StatusCode, started, nil)
		return nil
	}

	if !isCacheable(c, resp) {
		_, err := io.Copy(c.Response().BodyWriter(), resp.Body)
		h.logResult(uri, c.Method(), target.String(), requestID, resp.StatusCode, started, err)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("origin stream failed: %v", err))
		}
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	h.logResult(uri, c.Method(), target.String(), requestID, resp.StatusCode, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("origin read failed: %v", err))
	}

	h.store(uri, requestID, body)
	return c.Send(body)
}

// store writes body as the cached page for uri. Failures are only logged.
func (h *Handler) store(uri, requestID string, body []byte) {
	entry, err := h.cache.Create(uri)
	if err == nil {
		_, err = entry.Write(body)
	}

	path := ""
	if entry != nil {
		path = entry.Path()
	}
	fields := logging.CacheFields("cache_write", uri, path)
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Warn("cache_write_failed")
		return
	}
	fields["size_bytes"] = len(body)
	h.logger.WithFields(fields).Debug("page cached")
}

func (h *Handler) resolveURL(c fiber.Ctx) *url.URL {
	target := *h.origin
	basePath := strings.TrimSuffix(target.Path, "/")
	target.Path = basePath + string(c.Request().URI().Path())
	target.RawPath = ""
	target.RawQuery = string(c.Request().URI().QueryString())
	return &target
}

func (h *Handler) buildRequest(c fiber.Ctx, target *url.URL) (*http.Request, error) {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader = http.NoBody
	if raw := c.Body(); len(raw) > 0 {
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), target.String(), body)
	if err != nil {
		return nil, err
	}

	server.CopyHeaders(req.Header, fiberHeadersAsHTTP(c))
	// 缓存需要未压缩的 HTML，避免把 gzip 正文写入磁盘。
	req.Header.Del("Accept-Encoding")
	req.Host = target.Host
	req.Header.Set("Host", target.Host)
	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			req.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			req.Header.Set("X-Forwarded-For", ip)
		}
	}
	req.Header.Set("X-Forwarded-Proto", c.Protocol())
	if requestID := server.RequestID(c); requestID != "" {
		req.Header.Set(server.HeaderRequestID, requestID)
	}
	return req, nil
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	c.Set(server.HeaderCacheHit, "false")
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(uri, method, target, requestID string, status int, started time.Time, err error) {
	fields := logging.RequestFields(uri, method, requestID, false)
	fields["action"] = "origin"
	fields["origin"] = target
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Error("origin_request_failed")
		return
	}
	h.logger.WithFields(fields).Info("origin_request_completed")
}

// isCacheable 仅缓存无查询参数的 GET 200 HTML 响应，且源站未声明 no-store/private。
// 前端重写规则只按路径匹配，带查询参数的页面写入缓存会覆盖无参数版本。
func isCacheable(c fiber.Ctx, resp *http.Response) bool {
	if c.Method() != http.MethodGet || resp.StatusCode != http.StatusOK {
		return false
	}
	if len(c.Request().URI().QueryString()) > 0 {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/html" {
		return false
	}
	if encoding := resp.Header.Get("Content-Encoding"); encoding != "" && encoding != "identity" {
		return false
	}
	cacheControl := strings.ToLower(resp.Header.Get("Cache-Control"))
	if strings.Contains(cacheControl, "no-store") || strings.Contains(cacheControl, "private") {
		return false
	}
	return true
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	filtered := http.Header{}
	server.CopyHeaders(filtered, headers)
	for key, values := range filtered {
		if key == "Content-Length" {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
}

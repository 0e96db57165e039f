package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pagecache/internal/logging"
	"github.com/any-hub/pagecache/internal/pagecache"
)

// ConsolePrefix is where the admin console is mounted. Requests below it are
// never answered from the page cache, except the console test page which
// exists to be cached.
const (
	ConsolePrefix   = "/pagecache/console"
	ConsoleTestPath = ConsolePrefix + "/test"
)

// Response headers set on every page response.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderCacheHit  = "X-Pagecache-Hit"
)

// AppOptions controls how the Fiber application serves pages.
type AppOptions struct {
	Logger *logrus.Logger
	Cache  *pagecache.Cache
	// ServeCached answers GET/HEAD requests from cached files before any
	// route runs, the same way the front-end rewrite rules do.
	ServeCached bool
	// Origin renders pages the cache cannot answer. Nil means 404.
	Origin     fiber.Handler
	ListenPort int
}

const contextKeyRequestID = "_pagecache_request_id"

// NewApp builds a Fiber application with request IDs, panic recovery, the
// cache lookup middleware and a catch-all route that falls through to the
// origin. Console and diagnostics routes are registered by their packages
// after NewApp returns.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("page cache is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())
	if opts.ServeCached {
		app.Use(cacheLookupMiddleware(opts.Cache, opts.Logger))
	}

	app.All("/*", func(c fiber.Ctx) error {
		if isReservedPath(c.Path()) {
			return c.Next()
		}
		if opts.Origin == nil {
			c.Set(HeaderCacheHit, "false")
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "page_not_found",
			})
		}
		return opts.Origin(c)
	})

	return app, nil
}

func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set(HeaderRequestID, reqID)
		return c.Next()
	}
}

// cacheLookupMiddleware serves cacheDir/<path>/index.html when it exists and
// is not empty. Every other outcome, including lookup errors, falls through.
func cacheLookupMiddleware(cache *pagecache.Cache, logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		method := c.Method()
		if method != fiber.MethodGet && method != fiber.MethodHead {
			return c.Next()
		}
		uri := c.Path()
		if isReservedPath(uri) && uri != ConsoleTestPath {
			return c.Next()
		}

		data, err := cache.Lookup(uri)
		if err != nil {
			if !errors.Is(err, pagecache.ErrNotFound) {
				fields := logging.RequestFields(uri, method, RequestID(c), false)
				fields["action"] = "cache_lookup"
				logger.WithFields(fields).WithError(err).Warn("cache_lookup_failed")
			}
			return c.Next()
		}

		fields := logging.RequestFields(uri, method, RequestID(c), true)
		fields["action"] = "cache_lookup"
		logger.WithFields(fields).Debug("cache hit")

		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		c.Set(HeaderCacheHit, "true")
		return c.Status(fiber.StatusOK).Send(data)
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isReservedPath(path string) bool {
	return strings.HasPrefix(path, "/-/") || path == "/-" ||
		path == ConsolePrefix || strings.HasPrefix(path, ConsolePrefix+"/")
}

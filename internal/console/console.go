package console

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pagecache/internal/logging"
	"github.com/any-hub/pagecache/internal/pagecache"
	"github.com/any-hub/pagecache/internal/server"
)

//go:embed views/*.html
var views embed.FS

var pages = []string{"index.html", "testcache.html", "clearcache.html", "test.html"}

// Options wires the console to the cache and to the URL the self-test hits.
type Options struct {
	Cache  *pagecache.Cache
	Logger *logrus.Logger
	// Client performs the self-test requests.
	Client *http.Client
	// SelfTestURL is the externally reachable base URL of the site, without
	// a trailing slash. The self-test requests SelfTestURL + ConsoleTestPath.
	SelfTestURL string
	Now         func() time.Time
}

// Console renders the administration pages.
type Console struct {
	cache       *pagecache.Cache
	logger      *logrus.Logger
	client      *http.Client
	selfTestURL string
	now         func() time.Time
	templates   map[string]*template.Template
}

// New parses the embedded views and returns a Console.
func New(opts Options) (*Console, error) {
	if opts.Cache == nil {
		return nil, errors.New("page cache is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if strings.TrimSpace(opts.SelfTestURL) == "" {
		return nil, errors.New("self-test url is required")
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New("layout.html").ParseFS(views, "views/layout.html", "views/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse view %s: %w", page, err)
		}
		templates[page] = tmpl
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Console{
		cache:       opts.Cache,
		logger:      opts.Logger,
		client:      client,
		selfTestURL: strings.TrimRight(opts.SelfTestURL, "/"),
		now:         now,
		templates:   templates,
	}, nil
}

// Register mounts the console routes under server.ConsolePrefix.
func (c *Console) Register(app *fiber.App) {
	group := app.Group(server.ConsolePrefix)
	group.Get("/", c.index)
	group.Get("/testcache", c.testCache)
	group.Get("/clearcache", c.clearCache)
	group.Get("/test", c.test)
}

func (c *Console) index(ctx fiber.Ctx) error {
	return c.render(ctx, "index.html", fiber.Map{
		"Prefix":       server.ConsolePrefix,
		"CacheDir":     c.cache.Root(),
		"AppendStatus": c.cache.AppendStatus(),
	})
}

// testCache runs the end-to-end self-test against the live site.
func (c *Console) testCache(ctx fiber.Ctx) error {
	reqCtx := ctx.UserContext()
	if reqCtx == nil {
		reqCtx = context.Background()
	}

	url := c.selfTestURL + server.ConsoleTestPath
	result := runSelfTest(reqCtx, c.client, url)

	fields := logrus.Fields{
		"action":     "self_test",
		"url":        url,
		"ok":         result.OK,
		"created":    result.Created,
		"request_id": server.RequestID(ctx),
	}
	if result.OK {
		c.logger.WithFields(fields).Info("self-test passed")
	} else {
		c.logger.WithFields(fields).Warn("self-test failed")
	}

	return c.render(ctx, "testcache.html", fiber.Map{
		"Prefix":  server.ConsolePrefix,
		"OK":      result.OK,
		"Created": result.Created,
		"Diff":    result.Diff,
		"Error":   result.Error,
	})
}

func (c *Console) clearCache(ctx fiber.Ctx) error {
	ok := c.cache.Cleanup()

	fields := logging.CacheFields("cache_cleanup", "", c.cache.Root())
	fields["ok"] = ok
	fields["request_id"] = server.RequestID(ctx)
	if ok {
		c.logger.WithFields(fields).Info("cache cleared")
	} else {
		c.logger.WithFields(fields).Warn("cache_cleanup_failed")
	}

	return c.render(ctx, "clearcache.html", fiber.Map{
		"Prefix":   server.ConsolePrefix,
		"OK":       ok,
		"CacheDir": c.cache.Root(),
	})
}

// test renders the fixed test page, responds with it, and caches it under
// the request path. A cache failure is logged and the page is served anyway.
func (c *Console) test(ctx fiber.Ctx) error {
	output, err := c.execute("test.html", fiber.Map{
		"RenderedAt": c.now().Local().Format(pagecache.StatusLayout),
	})
	if err != nil {
		return err
	}

	uri := ctx.Path()
	entry, err := c.cache.Create(uri)
	if err == nil {
		_, err = entry.Write(output)
	}
	if err != nil {
		fields := logging.CacheFields("cache_write", uri, "")
		fields["request_id"] = server.RequestID(ctx)
		c.logger.WithFields(fields).WithError(err).Warn("cache_write_failed")
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	ctx.Set(server.HeaderCacheHit, "false")
	return ctx.Status(fiber.StatusOK).Send(output)
}

func (c *Console) render(ctx fiber.Ctx, page string, data fiber.Map) error {
	output, err := c.execute(page, data)
	if err != nil {
		return err
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return ctx.Status(fiber.StatusOK).Send(output)
}

func (c *Console) execute(page string, data fiber.Map) ([]byte, error) {
	tmpl, ok := c.templates[page]
	if !ok {
		return nil, fmt.Errorf("unknown view %s", page)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render view %s: %w", page, err)
	}
	return buf.Bytes(), nil
}

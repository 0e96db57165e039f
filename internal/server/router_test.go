package server

import (
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/pagecache/internal/logging"
	"github.com/any-hub/pagecache/internal/pagecache"
)

func TestRouterServesCachedPage(t *testing.T) {
	app := newTestApp(t, true)
	writePage(t, app.cache, "/about/mission", "<p>cached</p>")

	resp, err := app.Test(httptest.NewRequest("GET", "http://site.local/about/mission", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", resp.StatusCode, string(body))
	}
	if string(body) != "<p>cached</p>" {
		t.Fatalf("unexpected body %q", string(body))
	}
	if resp.Header.Get(HeaderCacheHit) != "true" {
		t.Fatalf("expected cache hit header")
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if app.origin.calls != 0 {
		t.Fatalf("origin should not be called on a hit, got %d calls", app.origin.calls)
	}
}

func TestRouterTreatsEmptyFileAsMiss(t *testing.T) {
	app := newTestApp(t, true)
	if _, err := app.cache.Create("/empty"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "http://site.local/empty", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK || app.origin.calls != 1 {
		t.Fatalf("expected origin fallback, status=%d calls=%d", resp.StatusCode, app.origin.calls)
	}
	if app.origin.lastPath != "/empty" {
		t.Fatalf("origin saw path %q", app.origin.lastPath)
	}
}

func TestRouterSkipsLookupForPost(t *testing.T) {
	app := newTestApp(t, true)
	writePage(t, app.cache, "/form", "cached form")

	resp, err := app.Test(httptest.NewRequest("POST", "http://site.local/form", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "origin" {
		t.Fatalf("POST must reach the origin, got %q", string(body))
	}
}

func TestRouterLookupDisabled(t *testing.T) {
	app := newTestApp(t, false)
	writePage(t, app.cache, "/page", "cached")

	resp, err := app.Test(httptest.NewRequest("GET", "http://site.local/page", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "origin" {
		t.Fatalf("expected origin body when ServeCached is off, got %q", string(body))
	}
}

func TestRouterReturns404WithoutOrigin(t *testing.T) {
	cache := newTestCache(t)
	app, err := NewApp(AppOptions{
		Logger:      logging.NewDiscardLogger(),
		Cache:       cache,
		ServeCached: true,
		ListenPort:  8080,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "http://site.local/missing", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRouterNeverServesReservedPathsFromCache(t *testing.T) {
	app := newTestApp(t, true)
	writePage(t, app.cache, ConsolePrefix, "stale console")

	resp, err := app.Test(httptest.NewRequest("GET", "http://site.local"+ConsolePrefix, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("console path without console routes should 404, got %d", resp.StatusCode)
	}
	if app.origin.calls != 0 {
		t.Fatalf("reserved paths must not reach the origin")
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	cache := newTestCache(t)
	if _, err := NewApp(AppOptions{Cache: cache, ListenPort: 1}); err == nil {
		t.Fatalf("expected error without logger")
	}
	if _, err := NewApp(AppOptions{Logger: logging.NewDiscardLogger(), ListenPort: 1}); err == nil {
		t.Fatalf("expected error without cache")
	}
	if _, err := NewApp(AppOptions{Logger: logging.NewDiscardLogger(), Cache: cache}); err == nil {
		t.Fatalf("expected error without port")
	}
}

type testApp struct {
	*fiber.App
	cache  *pagecache.Cache
	origin *originRecorder
}

func newTestApp(t *testing.T, serveCached bool) *testApp {
	t.Helper()

	cache := newTestCache(t)
	recorder := &originRecorder{}
	app, err := NewApp(AppOptions{
		Logger:      logging.NewDiscardLogger(),
		Cache:       cache,
		ServeCached: serveCached,
		Origin:      recorder.Handle,
		ListenPort:  8080,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return &testApp{App: app, cache: cache, origin: recorder}
}

func newTestCache(t *testing.T) *pagecache.Cache {
	t.Helper()
	cache, err := pagecache.New(pagecache.Options{CacheDir: filepath.Join(t.TempDir(), "pages")})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache
}

func writePage(t *testing.T, cache *pagecache.Cache, uri, body string) {
	t.Helper()
	entry, err := cache.Create(uri)
	if err != nil {
		t.Fatalf("create %s: %v", uri, err)
	}
	if _, err := entry.Write([]byte(body)); err != nil {
		t.Fatalf("write %s: %v", uri, err)
	}
}

type originRecorder struct {
	calls    int
	lastPath string
}

func (o *originRecorder) Handle(c fiber.Ctx) error {
	o.calls++
	o.lastPath = c.Path()
	return c.SendString("origin")
}

func TestRouterServesCachedConsoleTestPage(t *testing.T) {
	app := newTestApp(t, true)
	writePage(t, app.cache, ConsoleTestPath, "cached test page")

	resp, err := app.Test(httptest.NewRequest("GET", "http://site.local"+ConsoleTestPath, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "cached test page" {
		t.Fatalf("expected cached console test page, got %q", string(body))
	}
}

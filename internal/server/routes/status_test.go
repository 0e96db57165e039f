package routes

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/pagecache/internal/pagecache"
)

func TestStatusReportsCacheSettings(t *testing.T) {
	app, cache := newStatusApp(t, false)

	var payload statusPayload
	status := doJSON(t, app, "GET", "/-/status", &payload)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if payload.CacheDir != cache.Root() || !payload.AppendStatus || payload.Environment != "development" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Version == "" {
		t.Fatalf("expected version in payload")
	}
}

func TestStatusPageReportsCreatedTimestamp(t *testing.T) {
	app, cache := newStatusApp(t, false)
	entry, err := cache.Create("/about")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := entry.Write([]byte("<html>about</html>")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var payload pagePayload
	status := doJSON(t, app, "GET", "/-/status/page?uri="+url.QueryEscape("/about"), &payload)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !payload.Cached || payload.Created != "2011-01-01 21:00:00" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Path != entry.Path() {
		t.Fatalf("expected path %s, got %s", entry.Path(), payload.Path)
	}
}

func TestStatusPageMissAndBadInput(t *testing.T) {
	app, _ := newStatusApp(t, false)

	var payload pagePayload
	if status := doJSON(t, app, "GET", "/-/status/page?uri=/nothing", &payload); status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if payload.Cached {
		t.Fatalf("page should not be reported as cached")
	}

	var errPayload map[string]string
	if status := doJSON(t, app, "GET", "/-/status/page", &errPayload); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without uri, got %d", status)
	}
	if errPayload["error"] != "uri_required" {
		t.Fatalf("unexpected error %v", errPayload)
	}
	if status := doJSON(t, app, "GET", "/-/status/page?uri="+url.QueryEscape("/../etc"), &errPayload); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for traversal, got %d", status)
	}
	if errPayload["error"] != "invalid_uri" {
		t.Fatalf("unexpected error %v", errPayload)
	}
}

func TestPurgeRequiresOptIn(t *testing.T) {
	app, cache := newStatusApp(t, false)
	if _, err := cache.Create("/x"); err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("DELETE", "/-/status/page?uri=/x", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode == fiber.StatusOK {
		t.Fatalf("purge must not be routed when AllowPurge is off")
	}
}

func TestPurgeDeletesPage(t *testing.T) {
	app, cache := newStatusApp(t, true)
	entry, err := cache.Create("/x")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var payload map[string]interface{}
	if status := doJSON(t, app, "DELETE", "/-/status/page?uri=/x", &payload); status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if payload["purged"] != true {
		t.Fatalf("expected purged=true, got %v", payload)
	}
	if _, err := entry.Read(); err != pagecache.ErrNotFound {
		t.Fatalf("expected page to be gone, got %v", err)
	}
}

func newStatusApp(t *testing.T, allowPurge bool) (*fiber.App, *pagecache.Cache) {
	t.Helper()
	cache, err := pagecache.New(pagecache.Options{
		CacheDir:     filepath.Join(t.TempDir(), "pages"),
		AppendStatus: true,
		Now:          func() time.Time { return time.Date(2011, 1, 1, 21, 0, 0, 0, time.Local) },
	})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	app := fiber.New()
	RegisterStatusRoutes(app, cache, StatusOptions{
		Environment: "development",
		ServeCached: true,
		AllowPurge:  allowPurge,
	})
	return app, cache
}

func doJSON(t *testing.T, app *fiber.App, method, target string, out interface{}) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode %s: %v", string(body), err)
	}
	return resp.StatusCode
}

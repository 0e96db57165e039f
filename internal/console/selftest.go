package console

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/any-hub/pagecache/internal/pagecache"
	"github.com/any-hub/pagecache/internal/version"
)

const selfTestRequests = 3

// SelfTestResult is the outcome of requesting the test page repeatedly.
type SelfTestResult struct {
	OK      bool
	Created string
	// Diff is a line diff of the second and third responses when they differ.
	Diff  template.HTML
	Error string
}

// runSelfTest requests url three times. The first request primes the cache;
// the second and third must be identical and carry a status marker.
func runSelfTest(ctx context.Context, client *http.Client, url string) SelfTestResult {
	bodies := make([]string, 0, selfTestRequests)
	for i := 0; i < selfTestRequests; i++ {
		body, err := fetch(ctx, client, url)
		if err != nil {
			return SelfTestResult{Error: err.Error()}
		}
		bodies = append(bodies, body)
	}

	second, third := bodies[1], bodies[2]
	if second != third {
		return SelfTestResult{Diff: lineDiff(second, third)}
	}

	created, ok := pagecache.ParseStatus([]byte(second))
	return SelfTestResult{OK: ok, Created: created}
}

func fetch(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// lineDiff renders a line based diff of a and b as escaped HTML.
func lineDiff(a, b string) template.HTML {
	dmp := diffmatchpatch.New()
	runesA, runesB, lines := dmp.DiffLinesToRunes(a, b)
	diffs := dmp.DiffMainRunes(runesA, runesB, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return template.HTML(dmp.DiffPrettyHtml(diffs))
}

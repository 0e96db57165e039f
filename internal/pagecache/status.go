package pagecache

import (
	"regexp"
	"time"
)

// StatusLayout is the time layout used inside the status marker.
const StatusLayout = "2006-01-02 15:04:05"

const (
	statusOpen  = "<!-- {PAGECACHE_CREATED}"
	statusClose = "{/PAGECACHE_CREATED} -->"
)

var statusPattern = regexp.MustCompile(`<!-- \{PAGECACHE_CREATED\}(.+?)\{/PAGECACHE_CREATED\} -->`)

// StatusMarker renders the HTML comment recording when a page was cached.
// The time is formatted in local time without a zone.
func StatusMarker(t time.Time) string {
	return statusOpen + t.Local().Format(StatusLayout) + statusClose
}

// ParseStatus returns the timestamp captured from the first status marker in
// data. The second result is false when no marker is present.
func ParseStatus(data []byte) (string, bool) {
	match := statusPattern.FindSubmatch(data)
	if match == nil {
		return "", false
	}
	return string(match[1]), true
}

// StripStatus removes every status marker from data.
func StripStatus(data []byte) []byte {
	return statusPattern.ReplaceAll(data, nil)
}

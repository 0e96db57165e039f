package pagecache

import (
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Entry is the handle for one cached page. It is created by Cache.Create and
// is meant to be discarded after use.
type Entry struct {
	fs           afero.Fs
	path         string
	appendStatus bool
	now          func() time.Time
}

// Path returns the absolute index.html path of the entry.
func (e *Entry) Path() string {
	return e.path
}

// Write replaces the cached page with data, followed by a status marker when
// the cache was configured with AppendStatus. The new content is written to
// a hidden temp file next to the target and renamed over it. Write returns
// the entry so calls can be chained.
func (e *Entry) Write(data []byte) (*Entry, error) {
	if e.appendStatus {
		marked := make([]byte, 0, len(data)+len(statusOpen)+len(StatusLayout)+len(statusClose))
		marked = append(marked, data...)
		data = append(marked, StatusMarker(e.now())...)
	}

	dir := filepath.Dir(e.path)
	tmp, err := afero.TempFile(e.fs, dir, ".pagecache-*")
	if err != nil {
		return e, ioError("write", e.path, err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = e.fs.Chmod(tmpName, fileMode)
	}
	if err != nil {
		e.fs.Remove(tmpName)
		return e, ioError("write", e.path, err)
	}

	if err := e.fs.Rename(tmpName, e.path); err != nil {
		e.fs.Remove(tmpName)
		return e, ioError("rename", e.path, err)
	}
	return e, nil
}

// Read returns the full content of the cached page.
func (e *Entry) Read() ([]byte, error) {
	data, err := afero.ReadFile(e.fs, e.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("read", e.path, err)
	}
	return data, nil
}

// Delete removes the cached file and reports whether it succeeded. Parent
// directories are left in place.
func (e *Entry) Delete() bool {
	return e.fs.Remove(e.path) == nil
}

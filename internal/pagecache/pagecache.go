package pagecache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	indexFile = "index.html"
	dirMode   = os.FileMode(0o777)
	fileMode  = os.FileMode(0o666)
)

// Options configures a Cache. CacheDir is required; everything else is optional.
type Options struct {
	// CacheDir is the root of the cached page tree.
	CacheDir string
	// AppendStatus appends a StatusMarker to every written page.
	AppendStatus bool
	// BaseURL is stripped from the front of a URI before path derivation so
	// absolute and site-relative URIs map to the same file.
	BaseURL string
	// Fs defaults to the operating system filesystem.
	Fs afero.Fs
	// Now defaults to time.Now.
	Now func() time.Time
}

// Cache resolves URIs to cache entries under a single root directory.
type Cache struct {
	root         string
	appendStatus bool
	baseURL      string
	fs           afero.Fs
	now          func() time.Time
}

// New validates opts and returns a Cache. It does not touch the filesystem.
func New(opts Options) (*Cache, error) {
	if strings.TrimSpace(opts.CacheDir) == "" {
		return nil, &ConfigurationError{Field: "CacheDir", Reason: "no cache directory is specified"}
	}
	root, err := filepath.Abs(opts.CacheDir)
	if err != nil {
		return nil, &ConfigurationError{Field: "CacheDir", Reason: err.Error()}
	}
	if root == filepath.VolumeName(root)+string(filepath.Separator) {
		return nil, &ConfigurationError{Field: "CacheDir", Reason: "the filesystem root cannot be used as cache directory"}
	}

	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Cache{
		root:         root,
		appendStatus: opts.AppendStatus,
		baseURL:      opts.BaseURL,
		fs:           fsys,
		now:          now,
	}, nil
}

// Root returns the absolute cache directory.
func (c *Cache) Root() string {
	return c.root
}

// AppendStatus reports whether written pages receive a status marker.
func (c *Cache) AppendStatus() bool {
	return c.appendStatus
}

// Create resolves uri to its index.html under the cache root, creating every
// missing directory on the way and an empty file when none exists yet.
// Calling Create repeatedly for the same uri is safe and never truncates.
func (c *Cache) Create(uri string) (*Entry, error) {
	segments, err := c.segments(uri)
	if err != nil {
		return nil, err
	}

	if err := c.ensureRoot(); err != nil {
		return nil, err
	}

	dir := c.root
	for _, segment := range segments {
		dir = filepath.Join(dir, segment)
		if err := c.ensureDir(dir); err != nil {
			return nil, err
		}
	}

	file := filepath.Join(dir, indexFile)
	if err := c.ensureFile(file); err != nil {
		return nil, err
	}

	return &Entry{
		fs:           c.fs,
		path:         file,
		appendStatus: c.appendStatus,
		now:          c.now,
	}, nil
}

// Path returns the file a uri maps to without creating anything.
func (c *Cache) Path(uri string) (string, error) {
	segments, err := c.segments(uri)
	if err != nil {
		return "", err
	}
	parts := append([]string{c.root}, segments...)
	file := filepath.Join(append(parts, indexFile)...)
	if !strings.HasPrefix(file, c.root+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return file, nil
}

// Lookup returns the cached page for uri. A missing or empty file is a miss
// and returns ErrNotFound, which is how the front-end rewrite rules decide
// to fall through to the application.
func (c *Cache) Lookup(uri string) ([]byte, error) {
	file, err := c.Path(uri)
	if err != nil {
		return nil, err
	}

	info, err := c.fs.Stat(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("stat", file, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, ErrNotFound
	}

	data, err := afero.ReadFile(c.fs, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("read", file, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

// Purge deletes the cached page for uri. It reports false when there was
// nothing to delete.
func (c *Cache) Purge(uri string) (bool, error) {
	file, err := c.Path(uri)
	if err != nil {
		return false, err
	}
	if err := c.fs.Remove(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioError("remove", file, err)
	}
	return true, nil
}

// Cleanup deletes every cached file under the root while keeping the root
// directory itself. See Cleanup for the traversal rules.
func (c *Cache) Cleanup() bool {
	return Cleanup(c.fs, c.root)
}

// segments splits uri into path components after dropping the query,
// fragment and base URL. Empty components are skipped; "." and ".." are
// rejected so no uri can leave the cache root.
func (c *Cache) segments(uri string) ([]string, error) {
	if idx := strings.IndexAny(uri, "?#"); idx >= 0 {
		uri = uri[:idx]
	}
	if c.baseURL != "" && strings.HasPrefix(uri, c.baseURL) {
		uri = uri[len(c.baseURL):]
	}

	var segments []string
	for _, segment := range strings.Split(uri, "/") {
		switch {
		case segment == "":
			continue
		case segment == "." || segment == "..":
			return nil, ErrInvalidPath
		case strings.ContainsAny(segment, "\\\x00"):
			return nil, ErrInvalidPath
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

func (c *Cache) ensureRoot() error {
	if exists, err := afero.DirExists(c.fs, c.root); err == nil && exists {
		return nil
	}
	if err := c.fs.MkdirAll(c.root, dirMode); err != nil {
		return ioError("mkdir", c.root, err)
	}
	if err := c.fs.Chmod(c.root, dirMode); err != nil {
		return ioError("chmod", c.root, err)
	}
	return nil
}

func (c *Cache) ensureDir(dir string) error {
	info, err := c.fs.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return ioError("mkdir", dir, fs.ErrExist)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return ioError("stat", dir, err)
	}

	if err := c.fs.Mkdir(dir, dirMode); err != nil {
		if errors.Is(err, fs.ErrExist) {
			// 其它进程抢先创建，目录属主不同，chmod 可能被拒绝。
			return c.requireDir(dir)
		}
		return ioError("mkdir", dir, err)
	}
	// mkdir 受 umask 影响，需要显式放开权限以便多个 web 进程共享目录。
	if err := c.fs.Chmod(dir, dirMode); err != nil {
		return ioError("chmod", dir, err)
	}
	return nil
}

func (c *Cache) ensureFile(file string) error {
	f, err := c.fs.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			info, statErr := c.fs.Stat(file)
			if statErr != nil {
				return ioError("stat", file, statErr)
			}
			if info.IsDir() {
				return ioError("create", file, fs.ErrExist)
			}
			return nil
		}
		return ioError("create", file, err)
	}
	if err := f.Close(); err != nil {
		return ioError("create", file, err)
	}
	if err := c.fs.Chmod(file, fileMode); err != nil {
		return ioError("chmod", file, err)
	}
	return nil
}

func (c *Cache) requireDir(dir string) error {
	info, err := c.fs.Stat(dir)
	if err != nil {
		return ioError("stat", dir, err)
	}
	if !info.IsDir() {
		return ioError("mkdir", dir, fs.ErrExist)
	}
	return nil
}

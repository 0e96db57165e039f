package pagecache

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("pagecache: configuration error")
	// ErrIO matches every IOError via errors.Is.
	ErrIO = errors.New("pagecache: io error")
	// ErrNotFound 表示缓存页面不存在。
	ErrNotFound = errors.New("pagecache: entry not found")
	// ErrInvalidPath is returned for URIs whose segments would escape the cache root.
	ErrInvalidPath = errors.New("pagecache: invalid uri path")
)

// ConfigurationError reports a missing or unusable option.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("pagecache: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) hold.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("pagecache: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrIO) hold.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func ioError(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}

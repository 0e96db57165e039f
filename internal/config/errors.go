package config

import (
	"fmt"

	"github.com/any-hub/pagecache/internal/pagecache"
)

// FieldError 记录 TOML 中的字段名与错误原因，CLI 与 pagecachectl 直接输出。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is 让 errors.Is(err, pagecache.ErrConfiguration) 对配置校验失败同样成立，
// 调用方无需区分错误来自配置文件还是 pagecache.New。
func (e FieldError) Is(target error) bool {
	return target == pagecache.ErrConfiguration
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

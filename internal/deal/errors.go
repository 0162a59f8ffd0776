package deal

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 活动不存在。
	ErrNotFound = errors.New("deal: not found")
	// ErrRemoteService 媒体服务上传失败。删除失败不会返回该错误。
	ErrRemoteService = errors.New("deal: remote media service failed")
	// ErrPersistence 存储读写失败。
	ErrPersistence = errors.New("deal: persistence failed")
)

// ValidationError 入参校验失败，在任何远端调用和落库之前返回。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("deal: invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation 判断 err 链上是否有 ValidationError。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

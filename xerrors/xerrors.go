// Package xerrors 提供标准化错误处理工具。
package xerrors

import (
	"errors"
	"fmt"
)

// New 创建一个新的哨兵错误。
func New(msg string) error {
	return errors.New(msg)
}

// Is 判断错误链中是否包含目标错误。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 在错误链中查找匹配指定类型的错误。
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap 用上下文信息包装错误，保留错误链。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WithCode 用错误码包装错误。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// CodedError 带有机器可读错误码的错误。
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取错误码。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must 如果 err 不为 nil，则 panic。仅用于初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// 通用哨兵错误
var (
	// ErrNotFound 目标不存在
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput 输入无效
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout 操作超时
	ErrTimeout = errors.New("timeout")

	// ErrUnavailable 目标暂时不可用
	ErrUnavailable = errors.New("unavailable")

	// ErrClosed 组件已关闭
	ErrClosed = errors.New("closed")
)

// 标准库函数再导出
var (
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Package apperr 抠图流程对外暴露的错误类型。
//
// 每个阶段返回的错误都是带 Kind 的 *Error，消息可以直接展示给用户。
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	ModelNotInitialized
	Inference
	InvalidInput
	UnsupportedFormat
	Encoding
	Io
)

func (k Kind) String() string {
	switch k {
	case ModelNotInitialized:
		return "model not initialized"
	case Inference:
		return "inference error"
	case InvalidInput:
		return "invalid input"
	case UnsupportedFormat:
		return "unsupported format"
	case Encoding:
		return "encoding error"
	case Io:
		return "io error"
	default:
		return "error"
	}
}

// Error 已知类型的错误
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 给 err 附加类型和说明，err 为 nil 时返回 nil
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf 返回错误链上第一个 *Error 的类型，没有时为 Unknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind err 是否为 kind 类型
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvariant:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// 哨兵错误，配合 errors.Is 判断分类
var (
	ErrValidation = &LedgerError{Kind: KindValidation}
	ErrNotFound   = &LedgerError{Kind: KindNotFound}
	ErrConflict   = &LedgerError{Kind: KindConflict}
	ErrInvariant  = &LedgerError{Kind: KindInvariant}
)

// LedgerError 账务错误
type LedgerError struct {
	Kind    ErrorKind
	Code    string
	Message string
	cause   error
}

func (e *LedgerError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	if e.Code == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.cause
}

// Is 按 Kind 匹配哨兵错误
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Code == "" && t.Kind == e.Kind
}

// WithCause 附加底层错误
func (e *LedgerError) WithCause(cause error) *LedgerError {
	e.cause = cause
	return e
}

func NewValidationError(code, msg string) *LedgerError {
	return &LedgerError{Kind: KindValidation, Code: code, Message: msg}
}

func NewNotFoundError(code, msg string) *LedgerError {
	return &LedgerError{Kind: KindNotFound, Code: code, Message: msg}
}

func NewConflictError(code, msg string) *LedgerError {
	return &LedgerError{Kind: KindConflict, Code: code, Message: msg}
}

func NewInvariantViolation(code, msg string) *LedgerError {
	return &LedgerError{Kind: KindInvariant, Code: code, Message: msg}
}

// KindOf 返回错误分类，非 LedgerError 返回 0
func KindOf(err error) ErrorKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}

// CodeOf 返回错误码
func CodeOf(err error) string {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

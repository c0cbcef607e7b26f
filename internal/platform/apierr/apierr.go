package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an API error for transport-level mapping.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInvalidState Kind = "invalid_state"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

// Error carries a machine-readable code plus optional structured details so
// handlers can render actionable messages (which labels are missing, which
// slot is short and by how much) instead of a generic failure string.
type Error struct {
	Kind    Kind
	Code    string
	Err     error
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) WithDetail(key string, val any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = val
	return e
}

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func NotFound(code, format string, args ...any) *Error {
	return New(KindNotFound, code, fmt.Errorf(format, args...))
}

func Conflict(code, format string, args ...any) *Error {
	return New(KindConflict, code, fmt.Errorf(format, args...))
}

func InvalidState(code, format string, args ...any) *Error {
	return New(KindInvalidState, code, fmt.Errorf(format, args...))
}

func Forbidden(code, format string, args ...any) *Error {
	return New(KindForbidden, code, fmt.Errorf(format, args...))
}

func Unauthorized(code, format string, args ...any) *Error {
	return New(KindUnauthorized, code, fmt.Errorf(format, args...))
}

func Internal(code string, err error) *Error {
	return New(KindInternal, code, err)
}

// From extracts an *Error from err, wrapping unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal_error", err)
}

func KindOf(err error) Kind {
	ae := From(err)
	if ae == nil {
		return ""
	}
	return ae.Kind
}

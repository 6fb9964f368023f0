// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the caller-visible category of a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindForbidden
	KindUnavailable
	KindRateLimited
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindUnavailable:
		return "unavailable"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error carries a kind, a message catalog key and an optional cause.
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Key)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, key string, cause error) *Error {
	return &Error{Kind: kind, Key: key, Err: cause}
}

func Validation(key string) *Error { return newError(KindValidation, key, nil) }

func Conflict(key string, cause error) *Error { return newError(KindConflict, key, cause) }

func Auth(key string) *Error { return newError(KindAuth, key, nil) }

func Forbidden(key string) *Error { return newError(KindForbidden, key, nil) }

func Unavailable(key string, cause error) *Error { return newError(KindUnavailable, key, cause) }

func RateLimited(key string) *Error { return newError(KindRateLimited, key, nil) }

func NotFound(key string) *Error { return newError(KindNotFound, key, nil) }

// Internal wraps an unexpected failure. Its message is never shown to callers.
func Internal(cause error) *Error { return newError(KindInternal, "internal_error", cause) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// KeyOf returns the message key of err, or "internal_error".
func KeyOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Key
	}
	return "internal_error"
}

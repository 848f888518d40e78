// Package tgerr classifies platform errors into the taxonomy used to
// decide retry, skip, or abort behavior across the engine.
package tgerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is one bucket of the error taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindPermission
	KindNotFound
	KindAuthorization
	KindParse
	KindIO
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindParse:
		return "parse"
	case KindIO:
		return "io"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a classification and, for
// transient rate-limit errors, the server-signaled wait duration.
type Error struct {
	Kind       Kind
	RetryAfter time.Duration // non-zero only for rate-limit signals
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind.String(), e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// RateLimit builds a transient error carrying a retry-after duration, the
// "rate-limit signal" of spec §6.
func RateLimit(retryAfter time.Duration, cause error) *Error {
	return &Error{Kind: KindTransient, RetryAfter: retryAfter, Cause: cause}
}

// Is reports whether err carries the given classification.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsRateLimit extracts the retry-after duration if err is a rate-limit
// signal.
func AsRateLimit(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindTransient && e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}

// ParseError is returned by the Channel Resolver for unrecognized input
// syntaxes (spec §4.1).
func ParseError(format string, args ...any) *Error {
	return New(KindParse, fmt.Errorf(format, args...))
}

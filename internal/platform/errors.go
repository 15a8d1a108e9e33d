package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a connector failure so callers can decide between
// "retry", "re-link your account" and "fix your settings".
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindConnectionFailure
	KindAuthFailure   // 401/403: user must re-link the account
	KindConfigFailure // 400/404/422: missing board/list id etc
	KindServerFailure // 5xx
)

// String returns a short label for logs and user feedback
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionFailure:
		return "connection failure"
	case KindAuthFailure:
		return "authorization failure"
	case KindConfigFailure:
		return "configuration failure"
	case KindServerFailure:
		return "server failure"
	default:
		return "unknown error"
	}
}

// Retryable reports whether another attempt can help
func (k Kind) Retryable() bool {
	switch k {
	case KindAuthFailure, KindConfigFailure:
		return false
	default:
		return true
	}
}

// Error is a classified connector failure
type Error struct {
	Kind     Kind
	Platform string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Platform, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Advice returns an actionable hint for user-facing feedback
func (e *Error) Advice() string {
	switch e.Kind {
	case KindAuthFailure:
		return "re-link your " + e.Platform + " account"
	case KindConfigFailure:
		return "check your " + e.Platform + " settings"
	default:
		return "try again later"
	}
}

// ClassifyHTTP maps an HTTP status code onto the error taxonomy
func ClassifyHTTP(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuthFailure
	case status == 400 || status == 404 || status == 422:
		return KindConfigFailure
	case status >= 500:
		return KindServerFailure
	default:
		return KindUnknown
	}
}

// Classify maps a transport-level error onto the taxonomy. An *Error keeps
// its existing kind.
func Classify(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindConnectionFailure
	}
	return KindUnknown
}

// wrapHTTP builds a classified error from an HTTP response status
func wrapHTTP(platform, op string, status int, body string) *Error {
	return &Error{
		Kind:     ClassifyHTTP(status),
		Platform: platform,
		Op:       op,
		Err:      fmt.Errorf("API error (%d): %s", status, body),
	}
}

// wrapTransport builds a classified error from a failed round trip
func wrapTransport(platform, op string, err error) *Error {
	return &Error{
		Kind:     Classify(err),
		Platform: platform,
		Op:       op,
		Err:      err,
	}
}

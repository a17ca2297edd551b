package upload

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why an upload failed.
type Kind int

const (
	// KindValidation means the input was rejected before any I/O.
	KindValidation Kind = iota + 1
	// KindNetworkUnreachable covers DNS failures, refused or reset connections.
	KindNetworkUnreachable
	// KindTimeout means the configured timeout elapsed before a response arrived.
	KindTimeout
	// KindCanceled means the caller's context was canceled.
	KindCanceled
	// KindServerRejected means the server answered with a non-2xx status.
	KindServerRejected
	// KindMalformedResponse means a 2xx response whose body could not be read.
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetworkUnreachable:
		return "network-unreachable"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindServerRejected:
		return "server-rejected"
	case KindMalformedResponse:
		return "malformed-response"
	default:
		return "unknown"
	}
}

// Error categories. An *Error matches exactly one of these with errors.Is.
var (
	ErrValidation     = errors.New("upload: invalid input")
	ErrNetwork        = errors.New("upload: network failure")
	ErrServer         = errors.New("upload: server rejected request")
	ErrResponseDecode = errors.New("upload: malformed response")
)

// Error is the failure outcome of an upload.
type Error struct {
	Kind Kind

	// StatusCode is set for KindServerRejected and KindMalformedResponse.
	StatusCode int

	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("upload %s: %s", e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the category sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNetwork:
		return e.Kind == KindNetworkUnreachable || e.Kind == KindTimeout || e.Kind == KindCanceled
	case ErrServer:
		return e.Kind == KindServerRejected
	case ErrResponseDecode:
		return e.Kind == KindMalformedResponse
	}
	return false
}

// Retryable reports whether sending the same payload again may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetworkUnreachable, KindTimeout:
		return true
	case KindServerRejected:
		switch e.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
			return true
		}
		return e.StatusCode >= 500
	}
	return false
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

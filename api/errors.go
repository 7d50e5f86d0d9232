package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes a remote failure.
type Kind int

const (
	// KindNetwork is a transport-level failure with no response.
	KindNetwork Kind = iota + 1
	// KindAuth is a 401: token invalid or expired.
	KindAuth
	// KindValidation is any other 4xx: the payload was rejected.
	KindValidation
	// KindServer is a 5xx.
	KindServer
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind.
var (
	ErrNetwork    = errors.New("api: network error")
	ErrAuth       = errors.New("api: unauthorized")
	ErrValidation = errors.New("api: request rejected")
	ErrServer     = errors.New("api: server error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindAuth:
		return ErrAuth
	case KindValidation:
		return ErrValidation
	case KindServer:
		return ErrServer
	default:
		return nil
	}
}

// Classify maps an HTTP status to a Kind. It returns 0 for 1xx-3xx.
func Classify(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status >= 400 && status < 500:
		return KindValidation
	case status >= 500:
		return KindServer
	default:
		return 0
	}
}

// Error is a classified remote failure.
type Error struct {
	Kind       Kind
	StatusCode int // 0 for KindNetwork
	Method     string
	Path       string
	Message    string // server-provided message, if any
	Err        error  // underlying transport error, if any
}

func (e *Error) Error() string {
	target := e.Method + " " + e.Path
	switch {
	case e.Kind == KindNetwork && e.Err != nil:
		return fmt.Sprintf("api: %s: network error: %v", target, e.Err)
	case e.Message != "":
		return fmt.Sprintf("api: %s: %s error (%d): %s", target, e.Kind, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("api: %s: %s error (%d)", target, e.Kind, e.StatusCode)
	}
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Unwrap returns the underlying transport error.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// IsRetryable reports whether a read that failed with err may be retried:
// network and server failures are, auth and validation failures are not.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

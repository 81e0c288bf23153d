package hubauth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an AuthError.
type ErrorKind int

const (
	// KindInvalid means the hub rejected the credentials or bearer token.
	KindInvalid ErrorKind = iota + 1
	// KindNetworkFailure means the hub could not be reached or answered with a server error.
	KindNetworkFailure
	// KindNotConfigured means no hub address is configured.
	KindNotConfigured
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNetworkFailure:
		return "network_failure"
	case KindNotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// AuthError is returned by every Client operation.
type AuthError struct {
	Kind   ErrorKind
	Op     string
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("hubauth: %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *AuthError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == kind
}

var (
	// ErrNoToken is wrapped when a 200 login response carries no token.
	ErrNoToken = errors.New("hubauth: login response has no token")

	// ErrUnhealthy is wrapped when the liveness probe fails.
	ErrUnhealthy = errors.New("hubauth: hub health check failed")
)

func authErr(kind ErrorKind, op string, status int, err error) *AuthError {
	return &AuthError{Kind: kind, Op: op, Status: status, Err: err}
}

// kindForStatus maps a non-200 response to an error kind.
func kindForStatus(status int) ErrorKind {
	if status >= 500 {
		return KindNetworkFailure
	}
	return KindInvalid
}

package auth

import "errors"

// Domain errors for operator tokens.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrTokenRevoked = errors.New("auth: token has been revoked")
	ErrNoSecret     = errors.New("auth: signing secret is empty")
	ErrNoSubject    = errors.New("auth: operator id is empty")
)

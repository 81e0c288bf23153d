package vault

import "errors"

var (
	// ErrNoCredentials is returned by Load when nothing usable is cached.
	ErrNoCredentials = errors.New("vault: no cached credentials")

	// ErrInvalidKey is returned by Open when key.dat exists but is unusable.
	ErrInvalidKey = errors.New("vault: key file is invalid")

	// errSealed marks a record that could not be decoded or authenticated.
	errSealed = errors.New("vault: record cannot be opened")
)

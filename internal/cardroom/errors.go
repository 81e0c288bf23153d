package cardroom

import "errors"

var (
	// ErrMissingUUID is returned when an inbound record has no uuid to key it by.
	ErrMissingUUID = errors.New("cardroom: record uuid is required")

	// ErrMissingTenant is returned when a write is attempted without a tenant id.
	ErrMissingTenant = errors.New("cardroom: tenant id is required")

	// ErrNotFound is returned when a record does not exist in the ledger.
	ErrNotFound = errors.New("cardroom: record not found")
)

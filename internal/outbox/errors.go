package outbox

import "errors"

var (
	// ErrTenantRequired is returned when an operation is given an empty tenant id.
	ErrTenantRequired = errors.New("outbox: tenant id is required")

	// ErrEmptyMessage is returned by Enqueue for an entry with no message body.
	ErrEmptyMessage = errors.New("outbox: message is empty")
)

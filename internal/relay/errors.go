package relay

import "errors"

var (
	// ErrAuthRejected marks a link failure caused by the hub refusing the
	// channel authorization or reporting an invalid authentication. It is
	// never retried by the supervisor.
	ErrAuthRejected = errors.New("relay: hub rejected authentication")

	// ErrAttemptsExhausted is reported when the dial budget is used up and
	// the supervisor has moved to OfflineMode.
	ErrAttemptsExhausted = errors.New("relay: reconnect attempts exhausted")

	// ErrStopped is reported to handshake waiters when the connect cycle is
	// cancelled by Reset, Logout or Close.
	ErrStopped = errors.New("relay: connect cycle stopped")

	// ErrUnknownDataType is returned when decoding a payload of an
	// unrecognised dataType.
	ErrUnknownDataType = errors.New("relay: unknown dataType")

	// ErrMissingDependency is returned by New when a required collaborator
	// is nil.
	ErrMissingDependency = errors.New("relay: missing dependency")

	errLinkClosed = errors.New("relay: link closed")
)

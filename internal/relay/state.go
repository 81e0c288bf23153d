package relay

// ConnectionState is the supervisor's position in the link lifecycle.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateAwaitingAuth
	StateSubscribing
	StateSubscribed
	StateDisconnected
	StateOfflineMode
	StateLoggedOut
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateConnecting:   "connecting",
	StateAwaitingAuth: "awaiting_auth",
	StateSubscribing:  "subscribing",
	StateSubscribed:   "subscribed",
	StateDisconnected: "disconnected",
	StateOfflineMode:  "offline_mode",
	StateLoggedOut:    "logged_out",
}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON and logs.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

package session

// State is the connection state of the managed session.
type State int

const (
	// StateDisconnected means no session is active.
	StateDisconnected State = iota

	// StateConnecting means a connect is in flight; further connect calls
	// are rejected until it resolves.
	StateConnecting

	// StateOpen means the streaming session is live.
	StateOpen

	// StateReconnecting means the transport dropped and automatic
	// reconnection is in progress.
	StateReconnecting

	// StateClosing means a user-initiated close is in progress.
	StateClosing
)

// String returns the state name for status events and logs.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

package waweb

// ConnectionState represents the current state of the realtime connection.
type ConnectionState int

const (
	// StateDisconnected means the client is not connected.
	StateDisconnected ConnectionState = iota

	// StateConnecting means the client is establishing a connection.
	StateConnecting

	// StateConnected means the client is connected and ready.
	StateConnected

	// StateError means the last connection attempt failed.
	StateError
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusEvent is delivered to status subscribers on every connection
// transition. Terminal is set once the reconnect budget is exhausted;
// no further automatic attempts happen until Reconnect is called.
type StatusEvent struct {
	State         ConnectionState
	Reason        string
	WillReconnect bool
	Terminal      bool
	ConnID        string
	Uptime        int64 // milliseconds connected, set on disconnect
	Err           error // cause of an error transition, if any
}

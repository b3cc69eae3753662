package session

// State is the lifecycle state of a session.
type State int32

const (
	// Connecting means the handshake is in progress and the session is not
	// yet registered.
	Connecting State = iota
	// Open means the open packet was sent and the heartbeat is armed.
	Open
	// Upgrading means a websocket probe is in progress.
	Upgrading
	// Upgraded means the session moved to websocket.
	Upgraded
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Upgrading:
		return "upgrading"
	case Upgraded:
		return "upgraded"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Reason explains why a session was closed.
type Reason string

const (
	ReasonTransportClose  Reason = "transport close"
	ReasonTransportError  Reason = "transport error"
	ReasonPingTimeout     Reason = "ping timeout"
	ReasonParseError      Reason = "parse error"
	ReasonMultiplePolling Reason = "multiple http polling error"
	ReasonServerShutdown  Reason = "server shutting down"
	// ReasonServerClose is used when the application closes the session.
	ReasonServerClose Reason = "forced server close"
)

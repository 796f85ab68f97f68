package groupchat

// ChannelState represents the current state of the live channel.
type ChannelState int

const (
	// ChannelIdle means the channel has never been opened.
	ChannelIdle ChannelState = iota

	// ChannelConnecting means the websocket handshake is in progress.
	ChannelConnecting

	// ChannelOpen means frames flow in both directions.
	ChannelOpen

	// ChannelClosed means the channel was closed locally. Terminal.
	ChannelClosed

	// ChannelFailed means the connection dropped or could not be opened.
	// The channel may be opened again.
	ChannelFailed
)

// String returns the string representation of a ChannelState.
func (s ChannelState) String() string {
	switch s {
	case ChannelIdle:
		return "idle"
	case ChannelConnecting:
		return "connecting"
	case ChannelOpen:
		return "open"
	case ChannelClosed:
		return "closed"
	case ChannelFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateEvent represents a channel state change.
type StateEvent struct {
	GroupID  string
	OldState ChannelState
	NewState ChannelState
	Error    error // Optional error that caused the state change
}

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionLoading
	SessionLive
	SessionLeftOrClosed
	SessionErrored
)

// String returns the string representation of a SessionState.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionLoading:
		return "loading"
	case SessionLive:
		return "live"
	case SessionLeftOrClosed:
		return "left_or_closed"
	case SessionErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// SessionStateEvent represents a session lifecycle transition.
type SessionStateEvent struct {
	GroupID  string
	OldState SessionState
	NewState SessionState
	Error    error
}

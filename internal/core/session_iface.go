package core

// PeerState is the single authoritative view of session progress.
type PeerState int

const (
	PeerWaiting PeerState = iota
	PeerAwaitingApproval
	PeerConnecting
	PeerConnected
	PeerDisconnected
	PeerDenied
)

func (s PeerState) String() string {
	switch s {
	case PeerWaiting:
		return "waiting"
	case PeerAwaitingApproval:
		return "awaiting_approval"
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case PeerDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Terminal states are left only by starting a new session attempt.
func (s PeerState) Terminal() bool {
	return s == PeerDisconnected || s == PeerDenied
}

func (s PeerState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s ChannelState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

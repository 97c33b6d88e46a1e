package core

import "context"

// Frame is one raw control-channel message.
type Frame []byte

// ChannelState reflects only the control channel's liveness.
type ChannelState int

const (
	ChannelDisconnected ChannelState = iota
	ChannelConnecting
	ChannelConnected
)

func (s ChannelState) String() string {
	switch s {
	case ChannelConnecting:
		return "connecting"
	case ChannelConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ControlChannel abstracts the bidirectional connection to the rendezvous service.
// Owned by the session attempt; the session must Close() it.
type ControlChannel interface {
	// Connect opens the channel. Fails with ErrConnectTimeout or ErrConnect.
	Connect(ctx context.Context, addr string) error
	// Send is fire-and-forget and a no-op while the channel is not open.
	Send(Frame)
	// Close is idempotent.
	Close()
	State() ChannelState

	OnMessage(func(Frame))
	OnStateChange(func(ChannelState))
}

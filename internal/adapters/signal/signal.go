// Package signal owns the control channel to the rendezvous service and the
// message codec spoken over it.
package signal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Glimpse/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultReadLimit      = 32768
	sendBuffer            = 32
)

var _ core.ControlChannel = (*Channel)(nil)

type ChannelOptions struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	Dialer         *websocket.Dialer
}

// Channel is a websocket control channel. A dead handle is never reused:
// every Connect dials a fresh connection.
type Channel struct {
	opts ChannelOptions

	mu        sync.Mutex
	conn      *wsSignalConn
	epoch     uint64
	state     core.ChannelState
	onMessage func(core.Frame)
	onState   func(core.ChannelState)
}

func NewChannel(opts ChannelOptions) *Channel {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Channel{opts: opts}
}

func (ch *Channel) OnMessage(fn func(core.Frame)) {
	ch.mu.Lock()
	ch.onMessage = fn
	ch.mu.Unlock()
}

func (ch *Channel) OnStateChange(fn func(core.ChannelState)) {
	ch.mu.Lock()
	ch.onState = fn
	ch.mu.Unlock()
}

func (ch *Channel) State() core.ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Connect dials addr. Any previous handle is closed first.
func (ch *Channel) Connect(ctx context.Context, addr string) error {
	ch.mu.Lock()
	old := ch.conn
	ch.conn = nil
	ch.epoch++
	epoch := ch.epoch
	ch.mu.Unlock()
	if old != nil {
		old.Close()
	}

	ch.setState(core.ChannelConnecting)
	log.Info().Str("module", "signal").Str("addr", addr).Msg("connecting")

	dialCtx, cancel := context.WithTimeout(ctx, ch.opts.ConnectTimeout)
	defer cancel()

	ws, _, err := ch.opts.Dialer.DialContext(dialCtx, addr, nil)
	if err != nil {
		ch.setState(core.ChannelDisconnected)
		if ctx.Err() == nil && timedOut(dialCtx, err) {
			log.Error().Err(err).Str("module", "signal").Dur("timeout", ch.opts.ConnectTimeout).Msg("connect timeout")
			return fmt.Errorf("%w after %s", core.ErrConnectTimeout, ch.opts.ConnectTimeout)
		}
		log.Error().Err(err).Str("module", "signal").Msg("connect failed")
		return fmt.Errorf("%w: %v", core.ErrConnect, err)
	}
	ws.SetReadLimit(ch.opts.ReadLimit)

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}

	ch.mu.Lock()
	if ch.epoch != epoch {
		// Closed or reconnected while dialing.
		ch.mu.Unlock()
		conn.Close()
		return fmt.Errorf("%w: %v", core.ErrConnect, core.ErrChannelClosed)
	}
	ch.conn = conn
	ch.mu.Unlock()

	ch.setState(core.ChannelConnected)
	log.Info().Str("module", "signal").Str("addr", addr).Msg("connected")

	go ch.writePump(conn)
	go ch.readPump(conn)
	return nil
}

// Send queues f for writing; no-op while not connected.
func (ch *Channel) Send(f core.Frame) {
	ch.mu.Lock()
	conn := ch.conn
	ch.mu.Unlock()
	if conn == nil {
		log.Debug().Str("module", "signal").Msg("send on closed channel dropped")
		return
	}
	if err := conn.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("send dropped")
	}
}

// Close is idempotent and safe before any Connect.
func (ch *Channel) Close() {
	ch.mu.Lock()
	conn := ch.conn
	ch.conn = nil
	ch.epoch++
	ch.mu.Unlock()
	if conn != nil {
		conn.Close()
		log.Info().Str("module", "signal").Msg("closed")
	}
	ch.setState(core.ChannelDisconnected)
}

// dropped clears the handle after an unsolicited closure.
func (ch *Channel) dropped(conn *wsSignalConn) {
	ch.mu.Lock()
	current := ch.conn == conn
	if current {
		ch.conn = nil
	}
	ch.mu.Unlock()
	conn.Close()
	if current {
		log.Warn().Str("module", "signal").Msg("connection dropped")
		ch.setState(core.ChannelDisconnected)
	}
}

func (ch *Channel) setState(s core.ChannelState) {
	ch.mu.Lock()
	if ch.state == s {
		ch.mu.Unlock()
		return
	}
	ch.state = s
	fn := ch.onState
	ch.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (ch *Channel) deliver(f core.Frame) {
	ch.mu.Lock()
	fn := ch.onMessage
	ch.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

// timedOut also catches the socket deadline firing just before the context's.
func timedOut(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrChannelClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
	c.mu.Unlock()
}

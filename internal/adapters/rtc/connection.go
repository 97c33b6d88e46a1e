package rtc

import (
	"context"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Glimpse/internal/core"
	"github.com/dkeye/Glimpse/internal/domain"
)

var _ core.PeerTransport = (*Connection)(nil)

// Config holds ICE configuration for every PeerConnection of the process.
type Config struct {
	ICEServers []webrtc.ICEServer
	// IncludeLoopback gathers 127.0.0.1 candidates; used for same-host peers and tests.
	IncludeLoopback bool
}

func DefaultConfig() Config {
	return Config{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// NewAPI builds a pion API with default codecs and interceptors and pion's
// own logging routed to zerolog.
func NewAPI(cfg Config) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	reg := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, reg); err != nil {
		return nil, err
	}

	se := webrtc.SettingEngine{LoggerFactory: NewLoggerFactory()}
	se.SetIncludeLoopbackCandidate(cfg.IncludeLoopback)

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(reg),
		webrtc.WithSettingEngine(se),
	), nil
}

// Factory returns a core.TransportFactory bound to one session identity.
func Factory(api *webrtc.API, cfg Config, id domain.Identity) core.TransportFactory {
	return func() (core.PeerTransport, error) {
		return NewConnection(api, cfg, id)
	}
}

// Connection is the pion-backed PeerTransport.
type Connection struct {
	pc     *webrtc.PeerConnection
	logger zerolog.Logger
	cancel context.CancelFunc

	mu                  sync.RWMutex
	onICE               func(webrtc.ICECandidateInit)
	onNegotiationNeeded func()
	onState             func(webrtc.PeerConnectionState)
	onTrack             func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

	closeOnce sync.Once
}

func NewConnection(api *webrtc.API, cfg Config, id domain.Identity) (*Connection, error) {
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
	if err != nil {
		return nil, err
	}
	logger := log.With().
		Str("module", "webrtc").
		Str("room_id", string(id.RoomID)).
		Str("user_id", string(id.User.ID)).
		Logger()
	return &Connection{pc: pc, logger: logger}, nil
}

func (c *Connection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		c.mu.RLock()
		fn := c.onState
		c.mu.RUnlock()
		if fn != nil {
			fn(s)
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.RLock()
		fn := c.onICE
		c.mu.RUnlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	c.pc.OnNegotiationNeeded(func() {
		c.mu.RLock()
		fn := c.onNegotiationNeeded
		c.mu.RUnlock()
		if fn != nil {
			fn()
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.mu.RLock()
		fn := c.onTrack
		c.mu.RUnlock()
		if fn != nil {
			fn(ctx, track, receiver)
		}
	})

	return nil
}

func (c *Connection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *Connection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *Connection) SetLocalDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(sd)
}

func (c *Connection) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(sd)
}

func (c *Connection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// AddTrack attaches a local track and drains its RTCP so interceptors keep running.
func (c *Connection) AddTrack(track webrtc.TrackLocal) error {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *Connection) OnNegotiationNeeded(fn func()) {
	c.mu.Lock()
	c.onNegotiationNeeded = fn
	c.mu.Unlock()
}

func (c *Connection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// OnTrack sets application-level callback for remote tracks.
func (c *Connection) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if err := c.pc.Close(); err != nil {
			c.logger.Error().Err(err).Msg("close error")
		} else {
			c.logger.Info().Msg("closed")
		}
	})
}

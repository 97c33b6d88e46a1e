// Package session drives one call attempt: it interprets control messages,
// runs the join handshake and negotiates the peer transport.
//
// All session state is mutated on the goroutine running Run. Channel and
// transport callbacks, async completions and public operations only post
// closures onto the event queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Glimpse/internal/adapters/signal"
	"github.com/dkeye/Glimpse/internal/core"
	"github.com/dkeye/Glimpse/internal/domain"
)

const DefaultPingPeriod = 8 * time.Second

type Deps struct {
	Channel      core.ControlChannel
	Rendezvous   core.Rendezvous
	NewTransport core.TransportFactory
	Media        core.MediaSource
	// Sink is optional; without it remote tracks are left unread.
	Sink core.TrackSink
}

type Options struct {
	// PingPeriod is the keep-alive interval while the channel is connected.
	// Negative disables keep-alive.
	PingPeriod time.Duration
	// RequestLimit join requests per user are attached within RequestInterval;
	// the rest are ignored. Zero values pick the defaults.
	RequestLimit    int
	RequestInterval time.Duration
	// OnReport receives non-fatal errors. Called from the session loop; must not block.
	OnReport func(error)
}

type Session struct {
	id     domain.Identity
	deps   Deps
	opts   Options
	logger zerolog.Logger

	store  *StateStore
	events *queue[func()]
	out    *outbox
	busy   atomic.Int64

	closing   atomic.Bool
	closeOnce sync.Once
	doneOnce  sync.Once
	done      chan struct{}

	// loop-owned
	ctx         context.Context
	transport   core.PeerTransport
	media       core.LocalMedia
	acquiring   bool
	mediaFailed bool
	pendingDesc *webrtc.SessionDescription
	candidates  candidateBuffer
	outstanding domain.RequestID
	channelUp   bool
	limit       *requestLimiter
}

func New(id domain.Identity, deps Deps, opts Options) (*Session, error) {
	if deps.Channel == nil || deps.Rendezvous == nil || deps.NewTransport == nil || deps.Media == nil {
		return nil, errors.New("session: channel, rendezvous, transport factory and media source are required")
	}
	if opts.PingPeriod == 0 {
		opts.PingPeriod = DefaultPingPeriod
	}
	if opts.RequestLimit <= 0 {
		opts.RequestLimit = DefaultRequestLimit
	}
	if opts.RequestInterval <= 0 {
		opts.RequestInterval = DefaultRequestInterval
	}
	s := &Session{
		id:   id,
		deps: deps,
		opts: opts,
		logger: log.With().
			Str("module", "session").
			Str("room_id", string(id.RoomID)).
			Str("user_id", string(id.User.ID)).
			Str("role", id.Role.String()).
			Logger(),
		store:  newStateStore(id),
		events: newQueue[func()](),
		done:   make(chan struct{}),
		ctx:    context.Background(),
		limit:  newRequestLimiter(opts.RequestLimit, opts.RequestInterval),
	}
	s.out = newOutbox(&s.busy)

	deps.Channel.OnMessage(func(f core.Frame) {
		s.post(func() { s.handleFrame(f) })
	})
	deps.Channel.OnStateChange(func(st core.ChannelState) {
		s.post(func() { s.channelStateChanged(st) })
	})
	return s, nil
}

func (s *Session) Identity() domain.Identity { return s.id }

func (s *Session) Snapshot() Snapshot { return s.store.Get() }

// Subscribe streams snapshots; call the returned func to stop.
func (s *Session) Subscribe(buf int) (<-chan Snapshot, func()) {
	return s.store.Subscribe(buf)
}

// Run processes events until ctx is done or Close has been handled.
// Done is closed when Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.finish()
	s.ctx = ctx
	go s.out.run(ctx)

	var tick <-chan time.Time
	if s.opts.PingPeriod > 0 {
		t := time.NewTicker(s.opts.PingPeriod)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-s.events.ready():
			for _, fn := range s.events.drain() {
				fn()
				select {
				case <-s.done:
					return nil
				default:
				}
			}
		case <-tick:
			s.keepAlive()
		}
	}
}

// Connect opens the control channel. Failures are returned, never retried.
func (s *Session) Connect(ctx context.Context, addr string) error {
	if s.closing.Load() {
		return core.ErrSessionClosed
	}
	return s.deps.Channel.Connect(ctx, addr)
}

// Join asks the rendezvous service to let us into the room and remembers
// the request id so a later allow-join or deny-join can be matched.
func (s *Session) Join(ctx context.Context) error {
	if s.closing.Load() {
		return core.ErrSessionClosed
	}
	if !s.id.Complete() {
		return core.ErrMissingIdentity
	}
	rid, err := s.deps.Rendezvous.JoinRoom(ctx, s.id.User, s.id.RoomID)
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	s.logger.Info().Str("request_id", string(rid)).Msg("join requested")
	s.post(func() { s.joinIssued(rid) })
	return nil
}

// Approve lets the attached guest in. The state moves on room-ready.
func (s *Session) Approve(ctx context.Context) error {
	req, err := s.attachedRequest()
	if err != nil {
		return err
	}
	if err := s.deps.Rendezvous.ApproveJoin(ctx, s.id.User.ID, req.RequestID); err != nil {
		return fmt.Errorf("approve join: %w", err)
	}
	s.logger.Info().Str("request_id", string(req.RequestID)).Msg("join approved")
	return nil
}

// Deny rejects the attached guest and returns to Waiting.
func (s *Session) Deny(ctx context.Context) error {
	req, err := s.attachedRequest()
	if err != nil {
		return err
	}
	if err := s.deps.Rendezvous.DenyJoin(ctx, s.id.User.ID, req.RequestID); err != nil {
		return fmt.Errorf("deny join: %w", err)
	}
	s.logger.Info().Str("request_id", string(req.RequestID)).Msg("join denied")
	s.post(func() { s.requestDenied(req.RequestID) })
	return nil
}

// EndRoom asks the server to end the room; teardown follows the room-end broadcast.
func (s *Session) EndRoom(ctx context.Context) error {
	if s.closing.Load() {
		return core.ErrSessionClosed
	}
	if !s.id.Complete() {
		return core.ErrMissingIdentity
	}
	if err := s.deps.Rendezvous.EndRoom(ctx, s.id.RoomID, s.id.User.ID); err != nil {
		return fmt.Errorf("end room: %w", err)
	}
	return nil
}

// Close ends the session locally. Safe to call any number of times.
// The shutdown runs on the loop, so it takes effect only while Run is
// running; after Run has returned the session is already shut down.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.post(func() {
			s.shutdown()
			s.finish()
		})
	})
}

// Done is closed once a local Close has been handled or Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) finish() { s.doneOnce.Do(func() { close(s.done) }) }

func (s *Session) attachedRequest() (domain.JoinRequest, error) {
	if s.closing.Load() {
		return domain.JoinRequest{}, core.ErrSessionClosed
	}
	snap := s.store.Get()
	if !s.id.IsHost() || snap.Peer != core.PeerAwaitingApproval || snap.Request == nil {
		return domain.JoinRequest{}, core.ErrNoPendingRequest
	}
	return *snap.Request, nil
}

func (s *Session) post(fn func()) { s.events.push(fn) }

// spawn runs fn off the loop; fn posts its own completion.
func (s *Session) spawn(fn func()) {
	s.busy.Add(1)
	go func() {
		defer s.busy.Add(-1)
		fn()
	}()
}

func (s *Session) report(err error, msg string) {
	ev := s.logger.Error()
	if errors.Is(err, core.ErrDecode) || errors.Is(err, core.ErrMissingIdentity) {
		ev = s.logger.Warn()
	}
	ev.Err(err).Msg(msg)
	if s.opts.OnReport != nil {
		s.opts.OnReport(err)
	}
}

func (s *Session) peer() core.PeerState { return s.store.Get().Peer }

func (s *Session) setPeer(p core.PeerState) {
	prev := s.peer()
	s.store.update(func(snap *Snapshot) {
		snap.Peer = p
		if p != core.PeerAwaitingApproval {
			snap.Request = nil
		}
	})
	if prev != p {
		s.logger.Info().Str("from", prev.String()).Str("to", p.String()).Msg("peer state")
	}
}

// shutdown is the local close path.
func (s *Session) shutdown() {
	s.teardown()
	s.deps.Channel.Close()
	s.store.update(func(snap *Snapshot) {
		snap.Channel = core.ChannelDisconnected
		if snap.Peer != core.PeerDenied {
			snap.Peer = core.PeerDisconnected
			snap.Request = nil
		}
	})
	s.logger.Info().Msg("session closed")
}

// teardown closes and forgets the transport of this attempt.
func (s *Session) teardown() {
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	if s.media != nil {
		s.media.Stop()
		s.media = nil
	}
	s.acquiring = false
	s.mediaFailed = false
	s.pendingDesc = nil
	s.candidates.reset()
}

func (s *Session) joinIssued(rid domain.RequestID) {
	if s.peer().Terminal() {
		return
	}
	s.outstanding = rid
	s.store.update(func(snap *Snapshot) { snap.Outstanding = rid })
}

func (s *Session) requestDenied(rid domain.RequestID) {
	snap := s.store.Get()
	if snap.Peer != core.PeerAwaitingApproval || snap.Request == nil || snap.Request.RequestID != rid {
		return
	}
	s.setPeer(core.PeerWaiting)
}

func (s *Session) channelStateChanged(st core.ChannelState) {
	s.store.update(func(snap *Snapshot) { snap.Channel = st })
	switch st {
	case core.ChannelConnected:
		s.channelUp = true
	case core.ChannelDisconnected:
		if !s.channelUp {
			return
		}
		s.channelUp = false
		if s.peer().Terminal() {
			return
		}
		s.logger.Warn().Msg("control channel dropped")
		s.teardown()
		s.setPeer(core.PeerDisconnected)
	}
}

func (s *Session) keepAlive() {
	if s.store.Get().Channel != core.ChannelConnected {
		return
	}
	frame, err := signal.Encode(signal.NewMessage(signal.Ping{}))
	if err != nil {
		s.report(err, "encode ping")
		return
	}
	s.deps.Channel.Send(frame)
}

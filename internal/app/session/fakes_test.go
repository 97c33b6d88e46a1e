package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Glimpse/internal/adapters/signal"
	"github.com/dkeye/Glimpse/internal/core"
	"github.com/dkeye/Glimpse/internal/domain"
)

const testRoom domain.RoomID = "room-1"

var (
	hostID = domain.Identity{
		User:   domain.User{ID: "host-1", Username: "Alice"},
		RoomID: testRoom,
		Role:   domain.RoleHost,
	}
	guestID = domain.Identity{
		User:   domain.User{ID: "guest-1", Username: "Bob"},
		RoomID: testRoom,
		Role:   domain.RoleGuest,
	}
)

// fakeChannel is an in-memory ControlChannel.
type fakeChannel struct {
	mu         sync.Mutex
	state      core.ChannelState
	sent       []core.Frame
	closes     int
	connectErr error
	onMsg      func(core.Frame)
	onState    func(core.ChannelState)
}

func (c *fakeChannel) Connect(_ context.Context, _ string) error {
	c.setState(core.ChannelConnecting)
	if c.connectErr != nil {
		c.setState(core.ChannelDisconnected)
		return c.connectErr
	}
	c.setState(core.ChannelConnected)
	return nil
}

func (c *fakeChannel) Send(f core.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != core.ChannelConnected {
		return
	}
	c.sent = append(c.sent, f)
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.setState(core.ChannelDisconnected)
}

func (c *fakeChannel) State() core.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) OnMessage(fn func(core.Frame)) {
	c.mu.Lock()
	c.onMsg = fn
	c.mu.Unlock()
}

func (c *fakeChannel) OnStateChange(fn func(core.ChannelState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *fakeChannel) setState(st core.ChannelState) {
	c.mu.Lock()
	if c.state == st {
		c.mu.Unlock()
		return
	}
	c.state = st
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// drop simulates the server going away.
func (c *fakeChannel) drop() { c.setState(core.ChannelDisconnected) }

func (c *fakeChannel) deliverRaw(f core.Frame) {
	c.mu.Lock()
	fn := c.onMsg
	c.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

func (c *fakeChannel) deliver(p signal.Payload) {
	f, err := signal.Encode(signal.NewMessage(p))
	if err != nil {
		panic(err)
	}
	c.deliverRaw(f)
}

func (c *fakeChannel) sentKinds() []signal.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]signal.Kind, 0, len(c.sent))
	for _, f := range c.sent {
		if m, err := signal.Decode(f); err == nil {
			out = append(out, m.Kind)
		}
	}
	return out
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// fakeTransport records every operation the session drives.
type fakeTransport struct {
	name string

	mu      sync.Mutex
	ops     []string
	remote  *webrtc.SessionDescription
	closed  bool
	onICE   func(webrtc.ICECandidateInit)
	onNeg   func()
	onState func(webrtc.PeerConnectionState)
}

func (f *fakeTransport) record(op string) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()
}

func (f *fakeTransport) Start(context.Context) error { f.record("start"); return nil }

func (f *fakeTransport) Close() {
	f.mu.Lock()
	f.closed = true
	f.ops = append(f.ops, "close")
	f.mu.Unlock()
}

func (f *fakeTransport) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-" + f.name}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	if !f.HasRemoteDescription() {
		return webrtc.SessionDescription{}, errors.New("no remote description")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-from-" + f.name}, nil
}

func (f *fakeTransport) SetLocalDescription(sd webrtc.SessionDescription) error {
	f.record("local:" + sd.Type.String())
	return nil
}

func (f *fakeTransport) SetRemoteDescription(sd webrtc.SessionDescription) error {
	f.mu.Lock()
	f.remote = &sd
	f.ops = append(f.ops, "remote:"+sd.Type.String())
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) HasRemoteDescription() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote != nil
}

func (f *fakeTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	if !f.HasRemoteDescription() {
		return errors.New("remote description not set")
	}
	f.record("candidate:" + c.Candidate)
	return nil
}

// AddTrack fires negotiation-needed the way a real connection does.
func (f *fakeTransport) AddTrack(track webrtc.TrackLocal) error {
	f.record("track:" + track.ID())
	f.mu.Lock()
	fn := f.onNeg
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (f *fakeTransport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	f.mu.Lock()
	f.onICE = fn
	f.mu.Unlock()
}

func (f *fakeTransport) OnNegotiationNeeded(fn func()) {
	f.mu.Lock()
	f.onNeg = fn
	f.mu.Unlock()
}

func (f *fakeTransport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	f.mu.Lock()
	f.onState = fn
	f.mu.Unlock()
}

func (f *fakeTransport) OnTrack(func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)) {}

func (f *fakeTransport) fireState(st webrtc.PeerConnectionState) {
	f.mu.Lock()
	fn := f.onState
	f.mu.Unlock()
	fn(st)
}

func (f *fakeTransport) gather(candidate string) {
	f.mu.Lock()
	fn := f.onICE
	f.mu.Unlock()
	fn(webrtc.ICECandidateInit{Candidate: candidate})
}

func (f *fakeTransport) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeMedia hands out one audio track. A non-nil gate blocks Acquire until closed.
type fakeMedia struct {
	err   error
	gate  chan struct{}
	calls atomic.Int32
	stops atomic.Int32
}

type fakeLocalMedia struct {
	tracks []webrtc.TrackLocal
	stops  *atomic.Int32
	once   sync.Once
}

func (m *fakeLocalMedia) Tracks() []webrtc.TrackLocal { return m.tracks }
func (m *fakeLocalMedia) Stop()                       { m.once.Do(func() { m.stops.Add(1) }) }

func (m *fakeMedia) Acquire(ctx context.Context) (core.LocalMedia, error) {
	m.calls.Add(1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "test",
	)
	if err != nil {
		return nil, err
	}
	return &fakeLocalMedia{tracks: []webrtc.TrackLocal{track}, stops: &m.stops}, nil
}

// harness runs one session against fakes.
type harness struct {
	s     *Session
	ch    *fakeChannel
	media *fakeMedia

	mu         sync.Mutex
	transports []*fakeTransport
	reports    []error
}

func newHarness(t *testing.T, id domain.Identity, rv core.Rendezvous, opts Options) *harness {
	t.Helper()
	h := &harness{ch: &fakeChannel{}, media: &fakeMedia{}}
	if opts.PingPeriod == 0 {
		opts.PingPeriod = -1
	}
	opts.OnReport = func(err error) {
		h.mu.Lock()
		h.reports = append(h.reports, err)
		h.mu.Unlock()
	}
	s, err := New(id, Deps{
		Channel:    h.ch,
		Rendezvous: rv,
		NewTransport: func() (core.PeerTransport, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			ft := &fakeTransport{name: string(id.User.ID)}
			h.transports = append(h.transports, ft)
			return ft, nil
		},
		Media: h.media,
	}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.s = s

	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-exited
	})
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	if err := h.s.Connect(context.Background(), "ws://rendezvous.test/ws"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func (h *harness) transport(t *testing.T) *fakeTransport {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.transports) == 0 {
		t.Fatal("no transport created")
	}
	return h.transports[len(h.transports)-1]
}

func (h *harness) transportCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transports)
}

func (h *harness) reported() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.reports...)
}

func (h *harness) hasReport(target error) bool {
	for _, err := range h.reported() {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (h *harness) peer() core.PeerState { return h.s.Snapshot().Peer }

// onLoop runs fn on the session loop and waits for it.
func onLoop(t *testing.T, s *Session, fn func()) {
	t.Helper()
	done := make(chan struct{})
	s.post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-s.Done():
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("session loop stalled")
	}
}

// settle waits until no session has queued events or work in flight.
func settle(t *testing.T, hs ...*harness) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	quiet := 0
	for quiet < 2 {
		if time.Now().After(deadline) {
			t.Fatal("sessions did not settle")
		}
		idle := true
		for _, h := range hs {
			select {
			case <-h.s.Done():
				continue
			default:
			}
			onLoop(t, h.s, func() {})
			if h.s.busy.Load() != 0 || h.s.events.len() != 0 {
				idle = false
			}
		}
		if idle {
			quiet++
		} else {
			quiet = 0
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// fakeServer relays REST calls to the control channels of two sessions the
// way the rendezvous server does.
type fakeServer struct {
	room   domain.RoomID
	host   *harness
	guest  *harness
	hostID domain.UserID

	mu     sync.Mutex
	reqIDs []domain.RequestID
	calls  []string
}

var _ core.Rendezvous = (*fakeServer)(nil)

func (f *fakeServer) call(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeServer) nextRequestID() domain.RequestID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqIDs) == 0 {
		return domain.RequestID(fmt.Sprintf("r%d", len(f.calls)))
	}
	id := f.reqIDs[0]
	f.reqIDs = f.reqIDs[1:]
	return id
}

func (f *fakeServer) other(from domain.UserID) *harness {
	if from == f.hostID {
		return f.guest
	}
	return f.host
}

func (f *fakeServer) CreateRoom(context.Context, domain.User) (domain.RoomID, error) {
	f.call("create")
	return f.room, nil
}

func (f *fakeServer) JoinRoom(_ context.Context, user domain.User, roomID domain.RoomID) (domain.RequestID, error) {
	f.call("join")
	if roomID != f.room {
		return "", errors.New("no such room")
	}
	if user.ID == f.hostID {
		rid := domain.RequestID("host-request")
		f.host.ch.deliver(signal.AllowJoin{RequestID: rid})
		return rid, nil
	}
	rid := f.nextRequestID()
	f.host.ch.deliver(signal.RequestJoin{RequestID: rid, RoomID: roomID, UserID: user.ID, Username: user.Username})
	return rid, nil
}

func (f *fakeServer) ApproveJoin(_ context.Context, _ domain.UserID, rid domain.RequestID) error {
	f.call("approve")
	f.guest.ch.deliver(signal.AllowJoin{RequestID: rid})
	f.host.ch.deliver(signal.RoomReady{RoomID: f.room})
	f.guest.ch.deliver(signal.RoomReady{RoomID: f.room})
	return nil
}

func (f *fakeServer) DenyJoin(_ context.Context, _ domain.UserID, rid domain.RequestID) error {
	f.call("deny")
	f.guest.ch.deliver(signal.DenyJoin{RequestID: rid})
	return nil
}

func (f *fakeServer) ExchangeSDP(_ context.Context, roomID domain.RoomID, userID domain.UserID, sdp string) error {
	f.call("sdp")
	f.other(userID).ch.deliver(signal.Descriptor{RoomID: roomID, UserID: userID, SDP: sdp})
	return nil
}

func (f *fakeServer) ExchangeICE(_ context.Context, roomID domain.RoomID, userID domain.UserID, ice string) error {
	f.call("ice")
	f.other(userID).ch.deliver(signal.Candidate{RoomID: roomID, UserID: userID, ICE: ice})
	return nil
}

func (f *fakeServer) EndRoom(_ context.Context, roomID domain.RoomID, _ domain.UserID) error {
	f.call("end")
	f.host.ch.deliver(signal.RoomEnd{RoomID: roomID})
	f.guest.ch.deliver(signal.RoomEnd{RoomID: roomID})
	return nil
}

func newPair(t *testing.T, reqIDs ...domain.RequestID) (*fakeServer, *harness, *harness) {
	t.Helper()
	srv := &fakeServer{room: testRoom, hostID: hostID.User.ID, reqIDs: reqIDs}
	srv.host = newHarness(t, hostID, srv, Options{})
	srv.guest = newHarness(t, guestID, srv, Options{})
	srv.host.connect(t)
	srv.guest.connect(t)
	return srv, srv.host, srv.guest
}

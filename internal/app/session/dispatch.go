package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Glimpse/internal/adapters/signal"
	"github.com/dkeye/Glimpse/internal/core"
	"github.com/dkeye/Glimpse/internal/domain"
)

func (s *Session) handleFrame(f core.Frame) {
	msg, err := signal.Decode(f)
	if err != nil {
		if errors.Is(err, core.ErrUnknownType) {
			s.logger.Debug().Err(err).Msg("ignored message")
			return
		}
		s.report(err, "dropped control message")
		return
	}
	s.dispatch(msg)
}

func (s *Session) dispatch(msg signal.Message) {
	switch p := msg.Payload.(type) {
	case signal.Ping, signal.Pong:
		// the server answers both; replying would loop
	case signal.Error:
		s.logger.Warn().Str("message", p.Message).Msg("server error")
	case signal.RequestJoin:
		s.onRequestJoin(p)
	case signal.AllowJoin:
		s.onAllowJoin(p)
	case signal.DenyJoin:
		s.onDenyJoin(p)
	case signal.RoomReady:
		s.onRoomReady(p)
	case signal.RoomEnd:
		s.onRoomEnd(p)
	case signal.Descriptor:
		s.onDescriptor(p)
	case signal.Candidate:
		s.onCandidate(p)
	default:
		s.logger.Debug().Str("kind", msg.Kind.String()).Msg("unhandled message")
	}
}

func (s *Session) onRequestJoin(p signal.RequestJoin) {
	if !s.id.IsHost() || p.RoomID != s.id.RoomID {
		return
	}
	switch s.peer() {
	case core.PeerWaiting, core.PeerAwaitingApproval:
	default:
		s.logger.Info().Str("request_id", string(p.RequestID)).Msg("join request while busy, ignored")
		return
	}
	if !s.limit.allow(p.UserID) {
		s.logger.Warn().Str("from", string(p.UserID)).Msg("join request rate limited")
		return
	}
	req := p.Request()
	s.store.update(func(snap *Snapshot) {
		snap.Peer = core.PeerAwaitingApproval
		snap.Request = &req
	})
	s.logger.Info().
		Str("request_id", string(req.RequestID)).
		Str("username", req.Username).
		Msg("join request attached")
}

func (s *Session) onAllowJoin(p signal.AllowJoin) {
	if s.outstanding == "" || p.RequestID != s.outstanding {
		return
	}
	s.logger.Info().Str("request_id", string(p.RequestID)).Msg("join allowed")
}

func (s *Session) onDenyJoin(p signal.DenyJoin) {
	if s.outstanding == "" || p.RequestID != s.outstanding || s.peer().Terminal() {
		return
	}
	s.teardown()
	s.setPeer(core.PeerDenied)
	s.deps.Channel.Close()
}

func (s *Session) onRoomReady(p signal.RoomReady) {
	if p.RoomID != s.id.RoomID {
		return
	}
	switch s.peer() {
	case core.PeerWaiting, core.PeerAwaitingApproval:
	default:
		return
	}
	s.setPeer(core.PeerConnecting)
	// a guest may already hold an offer that overtook room-ready
	if s.id.IsHost() || s.pendingDesc != nil {
		if t := s.ensureTransport(); t != nil {
			s.acquireMedia(t)
		}
	}
}

func (s *Session) onRoomEnd(p signal.RoomEnd) {
	if p.RoomID != s.id.RoomID || s.peer().Terminal() {
		return
	}
	s.teardown()
	s.setPeer(core.PeerDisconnected)
	s.deps.Channel.Close()
}

// negotiating reports whether descriptor and candidate exchange is accepted.
// Exchange that overtakes room-ready is kept until the transport exists.
func (s *Session) negotiating(roomID domain.RoomID, from domain.UserID) bool {
	if roomID != s.id.RoomID || from == s.id.User.ID {
		return false
	}
	return !s.peer().Terminal()
}

func (s *Session) awaitingRoom() bool {
	p := s.peer()
	return p == core.PeerWaiting || p == core.PeerAwaitingApproval
}

func (s *Session) onDescriptor(p signal.Descriptor) {
	if !s.negotiating(p.RoomID, p.UserID) {
		return
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal([]byte(p.SDP), &sd); err != nil || sd.SDP == "" {
		if err == nil {
			err = errors.New("empty sdp")
		}
		s.report(fmt.Errorf("%w: descriptor: %v", core.ErrDecode, err), "dropped descriptor")
		return
	}

	if s.awaitingRoom() {
		s.pendingDesc = &sd
		s.logger.Info().Str("type", sd.Type.String()).Msg("descriptor held until room-ready")
		return
	}
	if s.transport == nil {
		t := s.ensureTransport()
		if t == nil {
			return
		}
		s.pendingDesc = &sd
		s.acquireMedia(t)
		return
	}
	if s.acquiring {
		s.pendingDesc = &sd
		return
	}
	if s.mediaFailed {
		// no answer without local tracks: capture again first
		s.logger.Info().Str("type", sd.Type.String()).Msg("retrying local media")
		s.pendingDesc = &sd
		s.acquireMedia(s.transport)
		return
	}
	s.applyRemote(sd)
}

func (s *Session) onCandidate(p signal.Candidate) {
	if !s.negotiating(p.RoomID, p.UserID) {
		return
	}
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(p.ICE), &c); err != nil {
		s.report(fmt.Errorf("%w: candidate: %v", core.ErrDecode, err), "dropped candidate")
		return
	}
	if c.Candidate == "" {
		s.logger.Debug().Msg("end of remote candidates")
		return
	}
	if s.transport != nil && s.transport.HasRemoteDescription() {
		if err := s.transport.AddICECandidate(c); err != nil {
			s.report(fmt.Errorf("%w: add candidate: %v", core.ErrNegotiation, err), "candidate rejected")
		}
		return
	}
	s.candidates.push(c)
	s.logger.Debug().Int("pending", s.candidates.len()).Msg("candidate buffered")
}

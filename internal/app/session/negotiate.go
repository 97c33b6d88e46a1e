package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Glimpse/internal/core"
)

// ensureTransport creates the transport of this attempt if it does not exist.
// Hooks carry the transport they were registered on so that events from a
// torn-down transport are recognised and dropped.
func (s *Session) ensureTransport() core.PeerTransport {
	if s.transport != nil {
		return s.transport
	}
	t, err := s.deps.NewTransport()
	if err != nil {
		s.report(fmt.Errorf("%w: create transport: %v", core.ErrNegotiation, err), "transport not created")
		return nil
	}
	t.OnICECandidate(func(c webrtc.ICECandidateInit) {
		s.post(func() { s.localCandidate(t, c) })
	})
	t.OnNegotiationNeeded(func() {
		s.post(func() { s.negotiationNeeded(t) })
	})
	t.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.post(func() { s.transportStateChanged(t, st) })
	})
	t.OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if s.deps.Sink == nil {
			s.logger.Debug().Str("track_id", track.ID()).Msg("no sink, remote track ignored")
			return
		}
		s.deps.Sink.HandleTrack(ctx, track)
	})
	if err := t.Start(s.ctx); err != nil {
		t.Close()
		s.report(fmt.Errorf("%w: start transport: %v", core.ErrNegotiation, err), "transport not started")
		return nil
	}
	s.transport = t
	s.logger.Info().Msg("transport created")
	return t
}

// acquireMedia captures local media off the loop and attaches it to t on return.
func (s *Session) acquireMedia(t core.PeerTransport) {
	s.acquiring = true
	s.mediaFailed = false
	ctx := s.ctx
	s.spawn(func() {
		m, err := s.deps.Media.Acquire(ctx)
		s.post(func() { s.mediaAcquired(t, m, err) })
	})
}

func (s *Session) mediaAcquired(t core.PeerTransport, m core.LocalMedia, err error) {
	if t != s.transport {
		// room ended or session closed while capturing
		if m != nil {
			m.Stop()
		}
		return
	}
	s.acquiring = false
	if err != nil {
		if !errors.Is(err, core.ErrMediaAcquisition) {
			err = fmt.Errorf("%w: %v", core.ErrMediaAcquisition, err)
		}
		s.pendingDesc = nil
		s.mediaFailed = true
		s.report(err, "local media unavailable")
		return
	}
	s.media = m
	for _, track := range m.Tracks() {
		if err := t.AddTrack(track); err != nil {
			s.report(fmt.Errorf("%w: add track %s: %v", core.ErrNegotiation, track.ID(), err), "track not attached")
		}
	}
	if sd := s.pendingDesc; sd != nil {
		s.pendingDesc = nil
		s.applyRemote(*sd)
	}
}

// applyRemote sets the remote descriptor, flushes buffered candidates in
// arrival order and answers an offer.
func (s *Session) applyRemote(sd webrtc.SessionDescription) {
	t := s.transport
	if err := t.SetRemoteDescription(sd); err != nil {
		s.report(fmt.Errorf("%w: remote %s: %v", core.ErrNegotiation, sd.Type, err), "descriptor rejected")
		return
	}
	n := s.candidates.len()
	for _, err := range s.candidates.flush(t.AddICECandidate) {
		s.report(fmt.Errorf("%w: add candidate: %v", core.ErrNegotiation, err), "candidate rejected")
	}
	s.logger.Info().Str("type", sd.Type.String()).Int("flushed", n).Msg("remote descriptor applied")

	if sd.Type != webrtc.SDPTypeOffer {
		return
	}
	answer, err := t.CreateAnswer()
	if err != nil {
		s.report(fmt.Errorf("%w: create answer: %v", core.ErrNegotiation, err), "answer failed")
		return
	}
	if err := t.SetLocalDescription(answer); err != nil {
		s.report(fmt.Errorf("%w: local answer: %v", core.ErrNegotiation, err), "answer failed")
		return
	}
	s.sendDescriptor(answer)
}

func (s *Session) negotiationNeeded(t core.PeerTransport) {
	if t != s.transport || !s.id.IsHost() || t.HasRemoteDescription() {
		return
	}
	offer, err := t.CreateOffer()
	if err != nil {
		s.report(fmt.Errorf("%w: create offer: %v", core.ErrNegotiation, err), "offer failed")
		return
	}
	if err := t.SetLocalDescription(offer); err != nil {
		s.report(fmt.Errorf("%w: local offer: %v", core.ErrNegotiation, err), "offer failed")
		return
	}
	s.sendDescriptor(offer)
}

func (s *Session) localCandidate(t core.PeerTransport, c webrtc.ICECandidateInit) {
	if t != s.transport {
		return
	}
	s.sendCandidate(c)
}

func (s *Session) transportStateChanged(t core.PeerTransport, st webrtc.PeerConnectionState) {
	if t != s.transport {
		return
	}
	switch st {
	case webrtc.PeerConnectionStateConnected:
		if s.peer() == core.PeerConnecting {
			s.setPeer(core.PeerConnected)
		}
	case webrtc.PeerConnectionStateFailed:
		s.report(fmt.Errorf("%w: transport failed", core.ErrNegotiation), "transport failed")
	}
}

func (s *Session) sendDescriptor(sd webrtc.SessionDescription) {
	if !s.id.Complete() {
		s.report(core.ErrMissingIdentity, "descriptor not sent")
		return
	}
	raw, err := json.Marshal(sd)
	if err != nil {
		s.report(err, "encode descriptor")
		return
	}
	roomID, userID := s.id.RoomID, s.id.User.ID
	s.out.push(func(ctx context.Context) {
		if err := s.deps.Rendezvous.ExchangeSDP(ctx, roomID, userID, string(raw)); err != nil {
			s.post(func() { s.report(err, "descriptor not delivered") })
		}
	})
	s.logger.Debug().Str("type", sd.Type.String()).Msg("descriptor sent")
}

func (s *Session) sendCandidate(c webrtc.ICECandidateInit) {
	if !s.id.Complete() {
		s.report(core.ErrMissingIdentity, "candidate not sent")
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		s.report(err, "encode candidate")
		return
	}
	roomID, userID := s.id.RoomID, s.id.User.ID
	s.out.push(func(ctx context.Context) {
		if err := s.deps.Rendezvous.ExchangeICE(ctx, roomID, userID, string(raw)); err != nil {
			s.post(func() { s.report(err, "candidate not delivered") })
		}
	})
}

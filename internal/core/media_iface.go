package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// PeerTransport is the facade over one direct peer connection.
// Its ICE/DTLS machinery stays behind the interface.
type PeerTransport interface {
	// Start wires internal callbacks; hooks must be registered before it.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	HasRemoteDescription() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// AddTrack attaches a local track to the underlying PeerConnection.
	AddTrack(webrtc.TrackLocal) error

	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	OnNegotiationNeeded(func())
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
}

// TransportFactory builds a fresh PeerTransport for one session attempt.
type TransportFactory func() (PeerTransport, error)

// LocalMedia is a set of captured local tracks.
type LocalMedia interface {
	Tracks() []webrtc.TrackLocal
	// Stop releases the capture; safe to call more than once.
	Stop()
}

// MediaSource acquires local media devices.
type MediaSource interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// TrackSink consumes remote media. HandleTrack returns when the track ends or ctx is done.
type TrackSink interface {
	HandleTrack(ctx context.Context, track *webrtc.TrackRemote)
}

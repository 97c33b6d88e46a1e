package signal

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Glimpse/internal/domain"
)

// Kind is the closed set of control message types. The wire form is the ordinal.
type Kind int

const (
	KindPing Kind = iota
	KindPong
	KindError
	KindRequestJoin
	KindAllowJoin
	KindDenyJoin
	KindRoomReady
	KindRoomEnd
	KindDescriptor
	KindCandidate
)

var kindNames = [...]string{
	KindPing:        "ping",
	KindPong:        "pong",
	KindError:       "error",
	KindRequestJoin: "request-join",
	KindAllowJoin:   "allow-join",
	KindDenyJoin:    "deny-join",
	KindRoomReady:   "room-ready",
	KindRoomEnd:     "room-end",
	KindDescriptor:  "descriptor-exchange",
	KindCandidate:   "candidate-exchange",
}

func (k Kind) Valid() bool { return k >= KindPing && k <= KindCandidate }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Payload is implemented by exactly one type per Kind.
type Payload interface {
	Kind() Kind
	validate() error
}

// Message is one decoded control message.
type Message struct {
	Kind    Kind
	Payload Payload
}

func NewMessage(p Payload) Message {
	return Message{Kind: p.Kind(), Payload: p}
}

type Ping struct{}

type Pong struct{}

// Error carries whatever text the server attached.
type Error struct {
	Message string
}

type RequestJoin struct {
	RequestID domain.RequestID `json:"requestId"`
	RoomID    domain.RoomID    `json:"roomId"`
	UserID    domain.UserID    `json:"userId"`
	Username  string           `json:"username"`
}

type AllowJoin struct {
	RequestID domain.RequestID `json:"requestId"`
	RoomID    domain.RoomID    `json:"roomId,omitempty"`
}

type DenyJoin struct {
	RequestID domain.RequestID `json:"requestId"`
	RoomID    domain.RoomID    `json:"roomId,omitempty"`
}

type RoomReady struct {
	RoomID domain.RoomID `json:"roomId"`
}

type RoomEnd struct {
	RoomID domain.RoomID `json:"roomId"`
}

// Descriptor carries a serialized session description (JSON of webrtc.SessionDescription).
type Descriptor struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
	SDP    string        `json:"sdp"`
}

// Candidate carries a serialized ICE candidate (JSON of webrtc.ICECandidateInit).
type Candidate struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
	ICE    string        `json:"ice"`
}

func (Ping) Kind() Kind        { return KindPing }
func (Pong) Kind() Kind        { return KindPong }
func (Error) Kind() Kind       { return KindError }
func (RequestJoin) Kind() Kind { return KindRequestJoin }
func (AllowJoin) Kind() Kind   { return KindAllowJoin }
func (DenyJoin) Kind() Kind    { return KindDenyJoin }
func (RoomReady) Kind() Kind   { return KindRoomReady }
func (RoomEnd) Kind() Kind     { return KindRoomEnd }
func (Descriptor) Kind() Kind  { return KindDescriptor }
func (Candidate) Kind() Kind   { return KindCandidate }

func (Ping) validate() error  { return nil }
func (Pong) validate() error  { return nil }
func (Error) validate() error { return nil }

func (p RequestJoin) validate() error {
	return required("requestId", string(p.RequestID), "roomId", string(p.RoomID),
		"userId", string(p.UserID), "username", p.Username)
}

func (p AllowJoin) validate() error { return required("requestId", string(p.RequestID)) }
func (p DenyJoin) validate() error  { return required("requestId", string(p.RequestID)) }
func (p RoomReady) validate() error { return required("roomId", string(p.RoomID)) }
func (p RoomEnd) validate() error   { return required("roomId", string(p.RoomID)) }

func (p Descriptor) validate() error {
	return required("roomId", string(p.RoomID), "userId", string(p.UserID), "sdp", p.SDP)
}

func (p Candidate) validate() error {
	return required("roomId", string(p.RoomID), "userId", string(p.UserID), "ice", p.ICE)
}

// Request converts the payload into the host-side join request.
func (p RequestJoin) Request() domain.JoinRequest {
	return domain.JoinRequest{
		RequestID: p.RequestID,
		RoomID:    p.RoomID,
		UserID:    p.UserID,
		Username:  p.Username,
	}
}

// Ping, pong and error travel with a bare string payload.
func (Ping) MarshalJSON() ([]byte, error)    { return []byte(`""`), nil }
func (Pong) MarshalJSON() ([]byte, error)    { return []byte(`""`), nil }
func (e Error) MarshalJSON() ([]byte, error) { return json.Marshal(e.Message) }

// required takes name/value pairs.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("missing field %s", pairs[i])
		}
	}
	return nil
}

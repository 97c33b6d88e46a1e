package signal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Glimpse/internal/core"
)

type envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes m into its JSON envelope.
func Encode(m Message) (core.Frame, error) {
	if m.Payload == nil {
		return nil, fmt.Errorf("encode %s: nil payload", m.Kind)
	}
	if m.Payload.Kind() != m.Kind {
		return nil, fmt.Errorf("encode %s: payload is %s", m.Kind, m.Payload.Kind())
	}
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	return json.Marshal(envelope{Type: m.Kind, Payload: payload})
}

// Decode parses one envelope. Every failure wraps core.ErrDecode; a type outside
// the enumeration is core.ErrUnknownType.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", core.ErrDecode, err)
	}
	if !env.Type.Valid() {
		return Message{}, fmt.Errorf("%w: %d", core.ErrUnknownType, int(env.Type))
	}

	var (
		p   Payload
		err error
	)
	switch env.Type {
	case KindPing:
		p = Ping{}
	case KindPong:
		p = Pong{}
	case KindError:
		p = decodeError(env.Payload)
	case KindRequestJoin:
		p, err = decodeInto[RequestJoin](env.Payload)
	case KindAllowJoin:
		p, err = decodeInto[AllowJoin](env.Payload)
	case KindDenyJoin:
		p, err = decodeInto[DenyJoin](env.Payload)
	case KindRoomReady:
		p, err = decodeInto[RoomReady](env.Payload)
	case KindRoomEnd:
		p, err = decodeInto[RoomEnd](env.Payload)
	case KindDescriptor:
		p, err = decodeInto[Descriptor](env.Payload)
	case KindCandidate:
		p, err = decodeInto[Candidate](env.Payload)
	}
	if err != nil {
		return Message{}, fmt.Errorf("%w: %s: %v", core.ErrDecode, env.Type, err)
	}
	if err := p.validate(); err != nil {
		return Message{}, fmt.Errorf("%w: %s: %v", core.ErrDecode, env.Type, err)
	}
	return Message{Kind: env.Type, Payload: p}, nil
}

func decodeInto[T Payload](raw json.RawMessage) (T, error) {
	var p T
	if len(bytes.TrimSpace(raw)) == 0 {
		return p, fmt.Errorf("missing payload")
	}
	err := json.Unmarshal(raw, &p)
	return p, err
}

func decodeError(raw json.RawMessage) Error {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return Error{Message: text}
	}
	return Error{Message: string(raw)}
}

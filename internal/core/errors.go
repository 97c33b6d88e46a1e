package core

import (
	"errors"
	"fmt"
)

var (
	ErrConnectTimeout   = errors.New("control channel connect timeout")
	ErrConnect          = errors.New("control channel connect failed")
	ErrChannelClosed    = errors.New("control channel closed")
	ErrDecode           = errors.New("decode control message")
	ErrMediaAcquisition = errors.New("acquire local media")
	ErrNegotiation      = errors.New("negotiation rejected")
	ErrMissingIdentity  = errors.New("missing user id or room id")
	ErrSessionClosed    = errors.New("session closed")
	ErrNoPendingRequest = errors.New("no pending join request")
)

// ErrUnknownType is a decode error for a type outside the closed enumeration.
var ErrUnknownType = fmt.Errorf("%w: unknown message type", ErrDecode)

package core

import (
	"context"

	"github.com/dkeye/Glimpse/internal/domain"
)

//go:generate mockgen -destination=mock_core/rendezvous.go -package=mock_core . Rendezvous

// Rendezvous is the REST side of the signaling server.
// Except for JoinRoom and CreateRoom, results only report delivery.
type Rendezvous interface {
	CreateRoom(ctx context.Context, user domain.User) (domain.RoomID, error)
	// JoinRoom returns the request id that a later allow-join/deny-join carries.
	JoinRoom(ctx context.Context, user domain.User, roomID domain.RoomID) (domain.RequestID, error)
	ApproveJoin(ctx context.Context, userID domain.UserID, requestID domain.RequestID) error
	DenyJoin(ctx context.Context, userID domain.UserID, requestID domain.RequestID) error
	ExchangeSDP(ctx context.Context, roomID domain.RoomID, userID domain.UserID, sdp string) error
	ExchangeICE(ctx context.Context, roomID domain.RoomID, userID domain.UserID, ice string) error
	EndRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
}

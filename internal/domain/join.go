package domain

// JoinRequest is a guest's attempt to enter a room, as seen by the host.
// It exists only while the host has not yet allowed or denied it.
type JoinRequest struct {
	RequestID RequestID `json:"requestId"`
	RoomID    RoomID    `json:"roomId"`
	UserID    UserID    `json:"userId"`
	Username  string    `json:"username"`
}

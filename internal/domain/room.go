package domain

import "fmt"

type (
	RoomID    string
	RequestID string
)

// Role is fixed for the lifetime of one session attempt.
type Role int

const (
	RoleHost Role = iota
	RoleGuest
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ParseRole accepts the config spelling of a role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "host":
		return RoleHost, nil
	case "guest":
		return RoleGuest, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// Identity is resolved once at session construction and never changes.
type Identity struct {
	User   User   `json:"user"`
	RoomID RoomID `json:"roomId"`
	Role   Role   `json:"role"`
}

func (id Identity) IsHost() bool { return id.Role == RoleHost }

// Complete reports whether both correlating identifiers are present.
func (id Identity) Complete() bool {
	return id.User.ID != "" && id.RoomID != ""
}

// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUserIDTooLong   = errors.New("user id too long")
)

type UserID string

type User struct {
	ID       UserID `json:"userId"`
	Username string `json:"username"`
}

// NewUserID returns a fresh random id for a user that has none yet.
func NewUserID() UserID {
	return UserID(uuid.NewString())
}

// NewUser validates username and keeps the given id, generating one when empty.
func NewUser(id UserID, username string) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if id == "" {
		id = NewUserID()
	}
	return &User{ID: id, Username: username}, nil
}

// Package domain contains the whiteboard entities: rooms, slides, elements and
// the participants connected to them. No transport or locking here.
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen  = 64
	MaxRoomKeyLen = 128
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
	ErrRoomKeyEmpty  = errors.New("room key empty")
	ErrRoomKeyLong   = errors.New("room key too long")
)

type (
	UserID  string
	ConnID  string
	RoomKey string
)

// Participant is one live connection of a user inside a room. A user may hold
// several connections at once (duplicated tabs), so the roster is keyed by ConnID.
type Participant struct {
	UserID UserID `json:"userID"`
	ConnID ConnID `json:"socketId"`
}

// ParseUserID trims and checks a client supplied user id.
func ParseUserID(raw string) (UserID, error) {
	id := strings.TrimSpace(raw)
	if len(id) == 0 {
		return "", ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return "", ErrUserIDTooLong
	}
	return UserID(id), nil
}

// ParseRoomKey trims and checks a client supplied room key.
func ParseRoomKey(raw string) (RoomKey, error) {
	key := strings.TrimSpace(raw)
	if len(key) == 0 {
		return "", ErrRoomKeyEmpty
	}
	if len(key) > MaxRoomKeyLen {
		return "", ErrRoomKeyLong
	}
	return RoomKey(key), nil
}

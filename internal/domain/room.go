package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxRoomIDLen = 64

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

type RoomID string

// NewRoomID generates an id for callers that did not supply one.
func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

// ParseRoomID validates a caller-supplied room id.
func ParseRoomID(raw string) (RoomID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrRoomIDEmpty
	}
	if len(raw) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(raw), nil
}

// DefaultRoomName is the display name of a room created by identity.
func DefaultRoomName(creator Identity) string {
	return fmt.Sprintf("%s's Vibe Room", creator)
}

// Room is a read-only snapshot of a room's state.
// Members are ordered by join time.
type Room struct {
	ID           RoomID    `json:"roomId"`
	Name         string    `json:"name"`
	HostIdentity Identity  `json:"hostIdentity"`
	Members      []Member  `json:"members"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Host returns the member flagged as host, if any.
func (r *Room) Host() (Member, bool) {
	for _, m := range r.Members {
		if m.IsHost {
			return m, true
		}
	}
	return Member{}, false
}

// Member looks a member up by identity.
func (r *Room) Member(id Identity) (Member, bool) {
	for _, m := range r.Members {
		if m.Identity == id {
			return m, true
		}
	}
	return Member{}, false
}

package domain

import "time"

// ConnToken is the opaque back-reference a room keeps for routing.
// Rooms never hold the transport object itself.
type ConnToken string

// Member represents a user's participation in a room.
// No transport or lifecycle logic here.
type Member struct {
	Identity Identity  `json:"identity"`
	Conn     ConnToken `json:"-"`
	Avatar   string    `json:"avatar"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(identity Identity, conn ConnToken, avatar string, now time.Time) *Member {
	return &Member{
		Identity: identity,
		Conn:     conn,
		Avatar:   NormalizeAvatar(avatar),
		JoinedAt: now,
	}
}

// Tenure orders members by join time, ties broken by identity.
func Tenure(a, b *Member) int {
	if a.JoinedAt.Before(b.JoinedAt) {
		return -1
	}
	if b.JoinedAt.Before(a.JoinedAt) {
		return 1
	}
	switch {
	case a.Identity < b.Identity:
		return -1
	case a.Identity > b.Identity:
		return 1
	}
	return 0
}

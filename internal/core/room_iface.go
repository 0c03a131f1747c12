package core

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/VibeRoom/internal/domain"
	"github.com/dkeye/VibeRoom/internal/vibe"
)

// JoinRequest carries what a client supplies to join. Name is only used
// when the join creates the room.
type JoinRequest struct {
	Identity domain.Identity
	Avatar   string
	Name     string
}

type JoinResult struct {
	Room        domain.Room
	IsHost      bool
	Created     bool
	Reconnected bool
	// PreviousConn is the connection a reconnecting member was attached to.
	PreviousConn SessionID
}

type LeaveResult struct {
	Room    domain.Room
	WasHost bool
	NewHost domain.Identity
	Closed  bool
}

type PlaybackUpdate struct {
	Track           json.RawMessage
	IsPlaying       bool
	PositionSeconds float64
	DurationSeconds float64
}

// Recorder receives durable copies of room changes. Calls happen under the
// room lock and must not block.
type Recorder interface {
	RoomChanged(domain.Room)
	MessagePosted(domain.Message)
	ReactionAdded(domain.Reaction)
}

// RoomService is the core-facing API of a room.
// Mutations are serialized per room; reads never take the room lock.
// It owns membership but never touches transport resources.
type RoomService interface {
	ID() domain.RoomID
	Snapshot() domain.Room
	MemberCount() int
	Active() bool
	Closed() bool
	Playback() (domain.PlaybackState, bool)
	Messages() []domain.Message
	Vibe(now time.Time) vibe.Reading

	Join(sid SessionID, req JoinRequest) (JoinResult, error)
	Leave(who domain.Identity, sid SessionID) (LeaveResult, error)
	TransferHost(requester domain.Identity, sid SessionID, target domain.Identity) error
	Publish(requester domain.Identity, sid SessionID, upd PlaybackUpdate) (domain.PlaybackState, error)
	PostMessage(who domain.Identity, sid SessionID, text, emoji string) (domain.Message, error)
	React(who domain.Identity, sid SessionID, emoji string, pos *domain.ScreenPos) (domain.Reaction, error)
	TickVibe(now time.Time)
}

type RoomInfo struct {
	ID           domain.RoomID   `json:"roomId"`
	Name         string          `json:"name"`
	HostIdentity domain.Identity `json:"hostIdentity"`
	MemberCount  int             `json:"memberCount"`
}

type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	Remove(room RoomService)
	Rooms() []RoomService
	List() []RoomInfo
	RefreshGauges()
}

package core

import (
	"time"

	"github.com/dkeye/VibeRoom/internal/domain"
	"github.com/dkeye/VibeRoom/internal/vibe"
)

type EventType string

const (
	EventRoomJoined      EventType = "room-joined"
	EventUserJoined      EventType = "user-joined"
	EventUserLeft        EventType = "user-left"
	EventNewMessage      EventType = "new-message"
	EventNewReaction     EventType = "new-reaction"
	EventPlaybackUpdated EventType = "playback-updated"
	EventHostTransferred EventType = "host-transferred"
	EventVibeUpdated     EventType = "vibe-updated"
	EventLeft            EventType = "left"
	EventPong            EventType = "pong"
	EventError           EventType = "error"
)

// Host transfer reasons.
const (
	ReasonExplicit         = "explicit"
	ReasonPreviousHostLeft = "previous_host_left"
)

// Event is a room state change addressed to a set of connections.
type Event struct {
	Type EventType
	Room domain.RoomID
	To   []SessionID
	Data any
}

// Publisher delivers events. Rooms call Publish while still holding their
// lock, so within a room events go out in the order mutations were applied.
// Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

// PlaybackView is a PlaybackState plus its projection at serverTime.
type PlaybackView struct {
	domain.PlaybackState
	CurrentPosition float64   `json:"currentPosition"`
	ServerTime      time.Time `json:"serverTime"`
}

func ViewOf(st domain.PlaybackState, now time.Time) PlaybackView {
	return PlaybackView{PlaybackState: st, CurrentPosition: st.Project(now), ServerTime: now}
}

type RoomJoined struct {
	Room         domain.Room      `json:"room"`
	IsHost       bool             `json:"isHost"`
	HostIdentity domain.Identity  `json:"hostIdentity"`
	Reconnected  bool             `json:"reconnected"`
	Playback     *PlaybackView    `json:"playback,omitempty"`
	Messages     []domain.Message `json:"messages"`
	Vibe         vibe.Reading     `json:"vibe"`
}

type UserJoined struct {
	Identity    domain.Identity `json:"identity"`
	Avatar      string          `json:"avatar"`
	IsHost      bool            `json:"isHost"`
	Reconnected bool            `json:"reconnected"`
	Room        domain.Room     `json:"room"`
}

// UserLeft describes the member as it was when it left; IsHost and WasHost
// both report whether it held the host role then.
type UserLeft struct {
	Identity domain.Identity `json:"identity"`
	Avatar   string          `json:"avatar"`
	IsHost   bool            `json:"isHost"`
	WasHost  bool            `json:"wasHost"`
	Room     domain.Room     `json:"room"`
}

type HostTransferred struct {
	OldHost domain.Identity `json:"oldHost"`
	NewHost domain.Identity `json:"newHost"`
	Reason  string          `json:"reason,omitempty"`
}

type NewMessage struct {
	Message domain.Message `json:"message"`
}

type NewReaction struct {
	Reaction domain.Reaction `json:"reaction"`
}

type Left struct {
	Reason string `json:"reason"`
}

type ErrorReply struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Op      string `json:"op"`
}

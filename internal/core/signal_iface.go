package core

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/VibeRoom/internal/domain"
)

// Frame is one encoded message for the wire.
type Frame []byte

// SignalConnection abstracts the client messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Envelope is the shape of every server frame.
type Envelope struct {
	Type       EventType     `json:"type"`
	RoomID     domain.RoomID `json:"roomId,omitempty"`
	ServerTime time.Time     `json:"serverTime"`
	Data       any           `json:"data,omitempty"`
}

// Encode wraps data into an envelope frame.
func Encode(t EventType, room domain.RoomID, data any) (Frame, error) {
	return json.Marshal(Envelope{Type: t, RoomID: room, ServerTime: time.Now(), Data: data})
}

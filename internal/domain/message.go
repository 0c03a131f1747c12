package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

const (
	MaxMessageLen       = 500
	DefaultMessageEmoji = "💬"
)

// Message is append-only per room; order is broadcast order.
type Message struct {
	ID         string    `json:"id"`
	RoomID     RoomID    `json:"roomId"`
	Identity   Identity  `json:"identity"`
	Text       string    `json:"text"`
	Emoji      string    `json:"emoji"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewMessage validates the text and stamps the message.
func NewMessage(room RoomID, who Identity, text, emoji string, now time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("%w: empty message", ErrInvalidPayload)
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return Message{}, fmt.Errorf("%w: message too long", ErrInvalidPayload)
	}
	if emoji == "" {
		emoji = DefaultMessageEmoji
	}
	return Message{
		ID:         ulid.Make().String(),
		RoomID:     room,
		Identity:   who,
		Text:       text,
		Emoji:      emoji,
		OccurredAt: now,
	}, nil
}

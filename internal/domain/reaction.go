package domain

import (
	"math/rand/v2"
	"time"

	"github.com/oklog/ulid/v2"
)

const DefaultEmojiWeight = 3.0

var emojiWeights = map[string]float64{
	"🔥": 10,
	"⚡": 9,
	"💥": 8,
	"🎉": 7,
	"💫": 6,
	"✨": 5,
	"💜": 4,
	"🎵": 4,
	"🌙": 2,
	"💭": 1,
}

// EmojiWeight is the fixed intensity weight of an emoji.
func EmojiWeight(emoji string) float64 {
	if w, ok := emojiWeights[emoji]; ok {
		return w
	}
	return DefaultEmojiWeight
}

// ScreenPos is where a reaction floats on the clients' screens, in percent.
type ScreenPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RandomScreenPos keeps floating reactions away from the edges.
func RandomScreenPos() ScreenPos {
	return ScreenPos{X: rand.Float64()*80 + 10, Y: rand.Float64()*60 + 20}
}

// Reaction is ephemeral: it only matters while it can influence the vibe window.
type Reaction struct {
	ID              string    `json:"id"`
	RoomID          RoomID    `json:"roomId"`
	Identity        Identity  `json:"identity"`
	Emoji           string    `json:"emoji"`
	IntensityWeight float64   `json:"intensityWeight"`
	Position        ScreenPos `json:"position"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// NewReaction stamps a reaction with an id and its lookup weight.
func NewReaction(room RoomID, who Identity, emoji string, pos *ScreenPos, now time.Time) Reaction {
	p := RandomScreenPos()
	if pos != nil {
		p = *pos
	}
	return Reaction{
		ID:              ulid.Make().String(),
		RoomID:          room,
		Identity:        who,
		Emoji:           emoji,
		IntensityWeight: EmojiWeight(emoji),
		Position:        p,
		OccurredAt:      now,
	}
}

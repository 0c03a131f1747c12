package signal

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dkeye/VibeRoom/internal/domain"
)

var validate = validator.New()

// Clients may send identity on room-scoped frames; the server ignores it and
// uses the identity the connection joined with.

// An empty RoomID on join asks the server to generate one.
type joinRoomPayload struct {
	RoomID   string `json:"roomId" validate:"max=64"`
	Identity string `json:"identity" validate:"required"`
	Avatar   string `json:"avatar"`
	Name     string `json:"name" validate:"max=80"`
}

type roomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
}

type transferHostPayload struct {
	RoomID         string `json:"roomId" validate:"required,max=64"`
	TargetIdentity string `json:"targetIdentity" validate:"required"`
}

type updatePlaybackPayload struct {
	RoomID          string          `json:"roomId" validate:"required,max=64"`
	Track           json.RawMessage `json:"track"`
	IsPlaying       bool            `json:"isPlaying"`
	PositionSeconds float64         `json:"positionSeconds" validate:"gte=0"`
	DurationSeconds float64         `json:"durationSeconds" validate:"gte=0"`
}

type sendMessagePayload struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
	Text   string `json:"text" validate:"required"`
	Emoji  string `json:"emoji"`
}

type sendReactionPayload struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
	Emoji  string `json:"emoji" validate:"required"`
	// IntensityWeight is accepted for compatibility; weights are looked up
	// server side.
	IntensityWeight float64           `json:"intensityWeight"`
	Position        *domain.ScreenPos `json:"position"`
	X               *float64          `json:"x"`
	Y               *float64          `json:"y"`
}

// position prefers an explicit position object over bare x/y fields.
func (p sendReactionPayload) position() *domain.ScreenPos {
	if p.Position != nil {
		return p.Position
	}
	if p.X != nil && p.Y != nil {
		return &domain.ScreenPos{X: *p.X, Y: *p.Y}
	}
	return nil
}

// decode unmarshals and validates a client frame. Failures wrap
// domain.ErrInvalidPayload.
func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", domain.ErrInvalidPayload, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}

package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
)

// PlaybackState is the reference point the host last published.
// Track is opaque: it is echoed to clients, never interpreted.
type PlaybackState struct {
	Track           json.RawMessage `json:"track,omitempty"`
	IsPlaying       bool            `json:"isPlaying"`
	PositionSeconds float64         `json:"positionSeconds"`
	DurationSeconds float64         `json:"durationSeconds,omitempty"`
	PublishedAt     time.Time       `json:"publishedAt"`
	PublishedBy     Identity        `json:"publishedBy"`
}

// Project returns the track position an observer sees at now.
// A zero DurationSeconds means the duration is unknown and the result is unclamped.
func (s PlaybackState) Project(now time.Time) float64 {
	if !s.IsPlaying {
		return s.PositionSeconds
	}
	pos := s.PositionSeconds + now.Sub(s.PublishedAt).Seconds()
	if s.DurationSeconds > 0 {
		pos = min(max(pos, 0), s.DurationSeconds)
	}
	return pos
}

// ValidatePlayback rejects positions and durations no clock can project from.
func ValidatePlayback(position, duration float64) error {
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		return fmt.Errorf("%w: position %v", ErrInvalidPayload, position)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return fmt.Errorf("%w: duration %v", ErrInvalidPayload, duration)
	}
	return nil
}

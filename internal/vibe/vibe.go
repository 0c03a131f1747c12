// Package vibe turns a room's recent reactions into a 0-100 intensity score.
//
// Scores are a pure function of the reactions, the member count and the
// evaluation instant, so any caller gets the same value whatever its polling
// cadence.
package vibe

import (
	"time"

	"github.com/dkeye/VibeRoom/internal/domain"
)

const (
	Window                = 30 * time.Second
	MinRecencyWeight      = 0.1
	MaxParticipationBoost = 20.0
	MaxScore              = 100.0

	// DefaultDecayPerSecond is the slowest a score sinks once its window is
	// empty.
	DefaultDecayPerSecond = 2.0
)

// Level names a score band.
type Level string

const (
	LevelChill     Level = "CHILL"
	LevelMedium    Level = "MEDIUM"
	LevelHigh      Level = "HIGH"
	LevelEpic      Level = "EPIC"
	LevelLegendary Level = "LEGENDARY"
)

func LevelOf(score float64) Level {
	switch {
	case score >= 80:
		return LevelLegendary
	case score >= 60:
		return LevelEpic
	case score >= 40:
		return LevelHigh
	case score >= 20:
		return LevelMedium
	}
	return LevelChill
}

// Intensity scores reactions at now for a room of memberCount members.
//
// While any reaction is younger than Window the score is the sum of the
// recency-decayed emoji weights plus a participation boost. Once the window
// empties, the score starts from the value it had when the newest reaction
// left the window and sinks by decayPerSecond, or faster when needed to reach
// zero within Retention.
func Intensity(reactions []domain.Reaction, now time.Time, memberCount int, decayPerSecond float64) float64 {
	if score, n := windowScore(reactions, now, memberCount, false); n > 0 {
		return score
	}
	newest, ok := newestAt(reactions, now)
	if !ok {
		return 0
	}
	expiry := newest.Add(Window)
	elapsed := now.Sub(expiry)
	if elapsed >= Retention {
		return 0
	}
	anchor, _ := windowScore(reactions, expiry, memberCount, true)
	rate := max(decayPerSecond, anchor/Retention.Seconds())
	return max(0, anchor-rate*elapsed.Seconds())
}

// Recent counts the reactions inside the window at now.
func Recent(reactions []domain.Reaction, now time.Time) int {
	n := 0
	for _, r := range reactions {
		if inWindow(now.Sub(r.OccurredAt), false) {
			n++
		}
	}
	return n
}

func windowScore(reactions []domain.Reaction, at time.Time, memberCount int, closed bool) (float64, int) {
	base := 0.0
	n := 0
	for _, r := range reactions {
		age := max(at.Sub(r.OccurredAt), 0)
		if !inWindow(age, closed) {
			continue
		}
		recency := max(MinRecencyWeight, 1-age.Seconds()/Window.Seconds())
		base += domain.EmojiWeight(r.Emoji) * recency
		n++
	}
	if n == 0 {
		return 0, 0
	}
	participation := min(float64(n)/float64(max(memberCount, 1)), 1)
	return min(MaxScore, base+participation*MaxParticipationBoost), n
}

// inWindow reports whether age falls inside the window. A closed window also
// admits reactions exactly Window old, which is where decay is anchored.
func inWindow(age time.Duration, closed bool) bool {
	if closed {
		return age <= Window
	}
	return age < Window
}

func newestAt(reactions []domain.Reaction, now time.Time) (time.Time, bool) {
	var newest time.Time
	found := false
	for _, r := range reactions {
		if r.OccurredAt.After(now) {
			continue
		}
		if !found || r.OccurredAt.After(newest) {
			newest = r.OccurredAt
			found = true
		}
	}
	return newest, found
}

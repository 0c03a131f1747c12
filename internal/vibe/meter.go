package vibe

import (
	"math"
	"sync"
	"time"

	"github.com/dkeye/VibeRoom/internal/domain"
)

// Retention keeps reactions a little past the window for late broadcasts.
const Retention = 5 * time.Second

// Reading is one evaluation of a room's meter.
type Reading struct {
	Score  float64 `json:"score"`
	Peak   float64 `json:"peak"`
	Level  Level   `json:"level"`
	Recent int     `json:"recentReactions"`
}

// Meter holds a room's bounded reaction history and its peak score.
// A meter lives as long as its room; the peak resets only with a new meter.
type Meter struct {
	mu       sync.Mutex
	history  []domain.Reaction
	limit    int
	decay    float64
	peak     float64
	lastSent float64
}

func NewMeter(limit int, decayPerSecond float64) *Meter {
	if limit <= 0 {
		limit = 256
	}
	if decayPerSecond <= 0 {
		decayPerSecond = DefaultDecayPerSecond
	}
	return &Meter{limit: limit, decay: decayPerSecond, lastSent: -1}
}

// Add records a reaction, dropping the oldest when the history is full.
func (m *Meter) Add(r domain.Reaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, r)
	if over := len(m.history) - m.limit; over > 0 {
		m.history = append(m.history[:0], m.history[over:]...)
	}
}

// Evaluate scores the history at now and raises the peak if needed.
func (m *Meter) Evaluate(now time.Time, memberCount int) Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evaluateLocked(now, memberCount)
}

// Tick evaluates and reports whether the rounded score moved since the last
// reading that Tick reported as changed.
func (m *Meter) Tick(now time.Time, memberCount int) (Reading, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rd := m.evaluateLocked(now, memberCount)
	rounded := math.Round(rd.Score)
	if rounded == m.lastSent {
		return rd, false
	}
	m.lastSent = rounded
	return rd, true
}

// Peak is the room's high-water mark.
func (m *Meter) Peak() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Len is the number of retained reactions.
func (m *Meter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

func (m *Meter) evaluateLocked(now time.Time, memberCount int) Reading {
	m.pruneLocked(now)
	score := Intensity(m.history, now, memberCount, m.decay)
	m.peak = max(m.peak, score)
	return Reading{
		Score:  score,
		Peak:   m.peak,
		Level:  LevelOf(score),
		Recent: Recent(m.history, now),
	}
}

// pruneLocked drops reactions that can no longer affect a score. The newest
// reactions are always kept because the decay anchor is computed from them.
func (m *Meter) pruneLocked(now time.Time) {
	if len(m.history) == 0 {
		return
	}
	newest, ok := newestAt(m.history, now)
	cutoff := now.Add(-(Window + Retention))
	kept := m.history[:0]
	for _, r := range m.history {
		if r.OccurredAt.Before(cutoff) && !(ok && r.OccurredAt.Equal(newest)) {
			continue
		}
		kept = append(kept, r)
	}
	clear(m.history[len(kept):])
	m.history = kept
}

package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectPlaying(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st := PlaybackState{IsPlaying: true, PositionSeconds: 10, PublishedAt: t0}

	assert.Equal(t, 10.0, st.Project(t0), "projection at publish time returns the published position")
	assert.Equal(t, 15.0, st.Project(t0.Add(5*time.Second)))
	assert.Equal(t, st.Project(t0.Add(3*time.Second)), st.Project(t0.Add(3*time.Second)))
}

func TestProjectPaused(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st := PlaybackState{IsPlaying: false, PositionSeconds: 42, PublishedAt: t0}
	assert.Equal(t, 42.0, st.Project(t0.Add(time.Hour)))
}

func TestProjectClampsToKnownDuration(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st := PlaybackState{IsPlaying: true, PositionSeconds: 170, DurationSeconds: 180, PublishedAt: t0}
	assert.Equal(t, 180.0, st.Project(t0.Add(time.Minute)))
	assert.Equal(t, 0.0, st.Project(t0.Add(-10*time.Minute)))

	unknown := PlaybackState{IsPlaying: true, PositionSeconds: 170, PublishedAt: t0}
	assert.Equal(t, 230.0, unknown.Project(t0.Add(time.Minute)))
}

func TestValidatePlayback(t *testing.T) {
	require.NoError(t, ValidatePlayback(0, 0))
	require.NoError(t, ValidatePlayback(12.5, 200))
	for _, pos := range []float64{-1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, ValidatePlayback(pos, 0), ErrInvalidPayload)
	}
	assert.ErrorIs(t, ValidatePlayback(1, -3), ErrInvalidPayload)
}

func TestEmojiWeight(t *testing.T) {
	assert.Equal(t, 10.0, EmojiWeight("🔥"))
	assert.Equal(t, 1.0, EmojiWeight("💭"))
	assert.Equal(t, DefaultEmojiWeight, EmojiWeight("🦄"))
}

func TestNewReactionKeepsPosition(t *testing.T) {
	now := time.Now()
	r := NewReaction("r1", "alice", "🔥", &ScreenPos{X: 1, Y: 2}, now)
	assert.Equal(t, ScreenPos{X: 1, Y: 2}, r.Position)
	assert.Equal(t, 10.0, r.IntensityWeight)
	assert.NotEmpty(t, r.ID)

	r = NewReaction("r1", "alice", "🔥", nil, now)
	assert.GreaterOrEqual(t, r.Position.X, 10.0)
	assert.Less(t, r.Position.X, 90.0)
}

func TestNewIdentity(t *testing.T) {
	id, err := NewIdentity("  Alice ")
	require.NoError(t, err)
	assert.Equal(t, Identity("Alice"), id)

	_, err = NewIdentity("   ")
	assert.ErrorIs(t, err, ErrIdentityEmpty)

	_, err = NewIdentity("abcdefghijklmnopqrstuvwxyzabcdefghijk")
	assert.ErrorIs(t, err, ErrIdentityTooLong)
}

func TestNewMessage(t *testing.T) {
	m, err := NewMessage("r1", "bob", " hi ", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "hi", m.Text)
	assert.Equal(t, DefaultMessageEmoji, m.Emoji)

	_, err = NewMessage("r1", "bob", "", "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTenure(t *testing.T) {
	t0 := time.Now()
	a := &Member{Identity: "zed", JoinedAt: t0}
	b := &Member{Identity: "amy", JoinedAt: t0.Add(time.Second)}
	c := &Member{Identity: "abe", JoinedAt: t0}

	assert.Equal(t, -1, Tenure(a, b))
	assert.Equal(t, 1, Tenure(b, a))
	assert.Equal(t, 1, Tenure(a, c), "ties break on identity order")
}

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{Op("update-playback", ErrNotHost), CodeNotHost},
		{fmt.Errorf("wrap: %w", ErrRoomClosed), CodeUnknownRoom},
		{Op("transfer-host", ErrUnknownMember), CodeUnknownMember},
		{ErrIdentityEmpty, CodeInvalidPayload},
		{ErrRateLimited, CodeRateLimited},
		{errors.New("boom"), CodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Code(tc.err), tc.err.Error())
	}
	assert.NoError(t, Op("x", nil))

	var opErr *OpError
	require.ErrorAs(t, Op("join-room", ErrUnknownRoom), &opErr)
	assert.Equal(t, "join-room", opErr.Op)
}

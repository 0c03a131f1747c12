package orch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VibeRoom/internal/app"
	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
	"github.com/dkeye/VibeRoom/internal/store"
)

type frameConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *frameConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *frameConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

type received struct {
	Type   core.EventType  `json:"type"`
	RoomID domain.RoomID   `json:"roomId"`
	Data   json.RawMessage `json:"data"`
}

func (c *frameConn) received(t *testing.T) []received {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]received, 0, len(c.frames))
	for _, f := range c.frames {
		var r received
		require.NoError(t, json.Unmarshal(f, &r))
		out = append(out, r)
	}
	return out
}

func (c *frameConn) last(t *testing.T, typ core.EventType) (received, bool) {
	t.Helper()
	all := c.received(t)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Type == typ {
			return all[i], true
		}
	}
	return received{}, false
}

type harness struct {
	orch  *Orchestrator
	mem   *store.MemoryStore
	now   time.Time
	conns map[core.SessionID]*frameConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mem:   store.NewMemoryStore(0),
		now:   time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC),
		conns: make(map[core.SessionID]*frameConn),
	}
	clock := func() time.Time { return h.now }
	reg := app.NewRegistry()
	b := app.NewBroadcaster(reg, app.SimplePolicy{})
	rooms := app.NewRoomManager(core.RoomOptions{Publisher: b, Clock: clock})
	b.Rooms = rooms
	h.orch = &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Replies:  b,
		Store:    h.mem,
		Clock:    clock,
	}
	return h
}

func (h *harness) connect(sid core.SessionID) *frameConn {
	c := &frameConn{}
	h.conns[sid] = c
	h.orch.Registry.Bind(core.NewSession(sid, c), func() {}, "ct-"+string(sid))
	return c
}

func (h *harness) join(t *testing.T, sid core.SessionID, room domain.RoomID, who domain.Identity) core.JoinResult {
	t.Helper()
	res, err := h.orch.Join(sid, room, core.JoinRequest{Identity: who})
	require.NoError(t, err)
	return res
}

func TestJoinLeaveAndElection(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("s1")
	bob := h.connect("s2")

	assert.True(t, h.join(t, "s1", "party", "alice").IsHost)
	h.now = h.now.Add(time.Second)
	assert.False(t, h.join(t, "s2", "party", "bob").IsHost)

	_, ok := alice.last(t, core.EventUserJoined)
	assert.True(t, ok)

	h.orch.OnDisconnect("s1")

	ev, ok := bob.last(t, core.EventHostTransferred)
	require.True(t, ok)
	var ht core.HostTransferred
	require.NoError(t, json.Unmarshal(ev.Data, &ht))
	assert.Equal(t, domain.Identity("bob"), ht.NewHost)
	assert.Equal(t, core.ReasonPreviousHostLeft, ht.Reason)

	snap, err := h.orch.Snapshot("party")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("bob"), snap.HostIdentity)
	assert.Len(t, snap.Members, 1)
}

func TestLastLeaveRemovesRoomAndNextJoinStartsFresh(t *testing.T) {
	h := newHarness(t)
	h.connect("s1")
	h.connect("s2")

	h.join(t, "s1", "party", "alice")
	require.NoError(t, h.orch.Leave("s1", "party"))
	left, ok := h.conns["s1"].last(t, core.EventLeft)
	require.True(t, ok)
	assert.Contains(t, string(left.Data), LeftRequested)

	_, ok = h.orch.Rooms.Get("party")
	assert.False(t, ok)
	assert.Empty(t, h.orch.Rooms.List())

	res := h.join(t, "s2", "party", "bob")
	assert.True(t, res.Created)
	assert.True(t, res.IsHost)
}

func TestLeaveWithoutMembership(t *testing.T) {
	h := newHarness(t)
	h.connect("s1")
	assert.ErrorIs(t, h.orch.Leave("s1", "party"), domain.ErrUnknownMember)
}

func TestReconnectReplacesOldConnection(t *testing.T) {
	h := newHarness(t)
	old := h.connect("s1")
	h.connect("s2")
	h.connect("s3")

	h.join(t, "s1", "party", "alice")
	h.join(t, "s3", "party", "carol")
	res := h.join(t, "s2", "party", "alice")
	assert.True(t, res.Reconnected)
	assert.True(t, res.IsHost)

	ev, ok := old.last(t, core.EventLeft)
	require.True(t, ok)
	assert.Contains(t, string(ev.Data), LeftReplaced)

	// The stale connection closing must not evict alice.
	h.orch.OnDisconnect("s1")
	snap, err := h.orch.Snapshot("party")
	require.NoError(t, err)
	assert.Len(t, snap.Members, 2)
	assert.Equal(t, domain.Identity("alice"), snap.HostIdentity)
}

func TestJoinUnderNewIdentityLeavesOldOne(t *testing.T) {
	h := newHarness(t)
	h.connect("s1")
	h.connect("s2")
	h.join(t, "s2", "party", "bob")
	h.join(t, "s1", "party", "alice")
	h.join(t, "s1", "party", "alicia")

	snap, err := h.orch.Snapshot("party")
	require.NoError(t, err)
	_, ok := snap.Member("alice")
	assert.False(t, ok)
	_, ok = snap.Member("alicia")
	assert.True(t, ok)
}

func TestJoinUsesStoredName(t *testing.T) {
	h := newHarness(t)
	h.connect("s1")
	require.NoError(t, h.mem.UpsertRoom(context.Background(), store.RoomRecord{ID: "party", Name: "Saturday Session"}))

	res := h.join(t, "s1", "party", "alice")
	assert.Equal(t, "Saturday Session", res.Room.Name)
}

func TestJoinRequiresConnection(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Join("ghost", "party", core.JoinRequest{Identity: "alice"})
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
	_, ok := h.orch.Rooms.Get("party")
	assert.False(t, ok)
}

func TestDenyTagsOperationOnce(t *testing.T) {
	h := newHarness(t)
	conn := h.connect("s1")

	h.orch.Deny("s1", "", "join-room", domain.Op("join-room", domain.ErrRoomIDEmpty))

	ev, ok := conn.last(t, core.EventError)
	require.True(t, ok)
	var reply core.ErrorReply
	require.NoError(t, json.Unmarshal(ev.Data, &reply))
	assert.Equal(t, domain.CodeInvalidPayload, reply.Code)
	assert.Equal(t, "join-room: room id empty", reply.Message)
}

func TestPlaybackAuthority(t *testing.T) {
	h := newHarness(t)
	h.connect("s1")
	bob := h.connect("s2")
	h.join(t, "s1", "party", "alice")
	h.join(t, "s2", "party", "bob")

	_, err := h.orch.UpdatePlayback("s2", "party", core.PlaybackUpdate{IsPlaying: true, PositionSeconds: 30})
	require.ErrorIs(t, err, domain.ErrNotHost)
	h.orch.Deny("s2", "party", "update-playback", err)

	ev, ok := bob.last(t, core.EventError)
	require.True(t, ok)
	var reply core.ErrorReply
	require.NoError(t, json.Unmarshal(ev.Data, &reply))
	assert.Equal(t, domain.CodeNotHost, reply.Code)
	assert.Equal(t, "update-playback", reply.Op)
	assert.Equal(t, "update-playback: "+domain.ErrNotHost.Error(), reply.Message)
	_, ok = bob.last(t, core.EventPlaybackUpdated)
	assert.False(t, ok)

	_, err = h.orch.UpdatePlayback("s1", "party", core.PlaybackUpdate{IsPlaying: true, PositionSeconds: 10})
	require.NoError(t, err)
	h.now = h.now.Add(5 * time.Second)
	view, ok, err := h.orch.Playback("party")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 15, view.CurrentPosition, 1e-9)
}

func TestOutsiderCannotTransferOrChat(t *testing.T) {
	h := newHarness(t)
	h.connect("s1")
	h.connect("s9")
	h.join(t, "s1", "party", "alice")

	assert.ErrorIs(t, h.orch.TransferHost("s9", "party", "alice"), domain.ErrNotHost)
	_, err := h.orch.SendMessage("s9", "party", "hi", "")
	assert.ErrorIs(t, err, domain.ErrUnknownMember)
	_, err = h.orch.SendReaction("s9", "nowhere", "🔥", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)
}

func TestTransferHostThroughOrchestrator(t *testing.T) {
	h := newHarness(t)
	h.connect("s1")
	h.connect("s2")
	h.join(t, "s1", "party", "alice")
	h.join(t, "s2", "party", "bob")

	require.NoError(t, h.orch.TransferHost("s1", "party", "bob"))
	snap, _ := h.orch.Snapshot("party")
	assert.Equal(t, domain.Identity("bob"), snap.HostIdentity)
	assert.ErrorIs(t, h.orch.TransferHost("s1", "party", "alice"), domain.ErrNotHost)
}

func TestMessagesFallBackToLiveRoom(t *testing.T) {
	h := newHarness(t)
	h.connect("s1")
	h.join(t, "s1", "party", "alice")
	_, err := h.orch.SendMessage("s1", "party", "first", "")
	require.NoError(t, err)
	_, err = h.orch.SendMessage("s1", "party", "second", "🎉")
	require.NoError(t, err)

	// Nothing was persisted: no writer is attached in this harness.
	msgs, err := h.orch.Messages(context.Background(), "party", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "second", msgs[0].Text)

	_, err = h.orch.Messages(context.Background(), "nowhere", 10)
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)
}

func TestTickVibesDecaysIdleRoom(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("s1")
	h.join(t, "s1", "party", "alice")
	_, err := h.orch.SendReaction("s1", "party", "🔥", nil)
	require.NoError(t, err)

	rd, err := h.orch.Vibe("party")
	require.NoError(t, err)
	assert.Greater(t, rd.Score, 0.0)

	h.now = h.now.Add(time.Minute)
	h.orch.TickVibes()
	ev, ok := alice.last(t, core.EventVibeUpdated)
	require.True(t, ok)
	assert.Contains(t, string(ev.Data), `"score":0`)

	rd, err = h.orch.Vibe("party")
	require.NoError(t, err)
	assert.Zero(t, rd.Score)
	assert.Greater(t, rd.Peak, 0.0)
}

func TestRunVibeTickerStops(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.RunVibeTicker(ctx, time.Millisecond) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.orch.Health(context.Background()))
}

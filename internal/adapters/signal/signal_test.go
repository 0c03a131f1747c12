package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VibeRoom/internal/app"
	"github.com/dkeye/VibeRoom/internal/app/orch"
	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
)

type frame struct {
	Type   core.EventType  `json:"type"`
	RoomID domain.RoomID   `json:"roomId"`
	Data   json.RawMessage `json:"data"`
}

func newServer(t *testing.T) string {
	t.Helper()
	return newServerWith(t, Options{})
}

func newServerWith(t *testing.T, opts Options) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := app.NewRegistry()
	b := app.NewBroadcaster(reg, app.SimplePolicy{})
	rooms := app.NewRoomManager(core.RoomOptions{Publisher: b})
	b.Rooms = rooms
	o := &orch.Orchestrator{Registry: reg, Rooms: rooms, Replies: b}
	ctl := NewSignalWSController(o, opts)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// expect reads until a frame of type typ arrives, skipping others.
func expect(t *testing.T, conn *websocket.Conn, typ core.EventType) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == typ {
			return f
		}
	}
}

func expectError(t *testing.T, conn *websocket.Conn, code string) core.ErrorReply {
	t.Helper()
	f := expect(t, conn, core.EventError)
	var reply core.ErrorReply
	require.NoError(t, json.Unmarshal(f.Data, &reply))
	assert.Equal(t, code, reply.Code)
	return reply
}

func joinRoom(t *testing.T, conn *websocket.Conn, room, who string) core.RoomJoined {
	t.Helper()
	send(t, conn, map[string]any{"type": "join-room", "roomId": room, "identity": who, "avatar": "🎧"})
	f := expect(t, conn, core.EventRoomJoined)
	var rj core.RoomJoined
	require.NoError(t, json.Unmarshal(f.Data, &rj))
	return rj
}

func TestSessionFlow(t *testing.T) {
	url := newServer(t)
	alice := dial(t, url)
	bob := dial(t, url)

	rj := joinRoom(t, alice, "R1", "Alice")
	assert.True(t, rj.IsHost)
	assert.Equal(t, domain.Identity("Alice"), rj.HostIdentity)

	rj = joinRoom(t, bob, "R1", "Bob")
	assert.False(t, rj.IsHost)
	assert.Len(t, rj.Room.Members, 2)

	f := expect(t, alice, core.EventUserJoined)
	var uj core.UserJoined
	require.NoError(t, json.Unmarshal(f.Data, &uj))
	assert.Equal(t, domain.Identity("Bob"), uj.Identity)
	assert.Len(t, uj.Room.Members, 2)

	// A guest cannot drive playback.
	send(t, bob, map[string]any{"type": "update-playback", "roomId": "R1", "isPlaying": true, "positionSeconds": 10})
	reply := expectError(t, bob, domain.CodeNotHost)
	assert.Equal(t, "update-playback", reply.Op)

	// The host disconnects; Bob inherits the room.
	require.NoError(t, alice.Close())
	expect(t, bob, core.EventUserLeft)
	f = expect(t, bob, core.EventHostTransferred)
	var ht core.HostTransferred
	require.NoError(t, json.Unmarshal(f.Data, &ht))
	assert.Equal(t, domain.Identity("Alice"), ht.OldHost)
	assert.Equal(t, domain.Identity("Bob"), ht.NewHost)
	assert.Equal(t, core.ReasonPreviousHostLeft, ht.Reason)

	send(t, bob, map[string]any{
		"type":            "update-playback",
		"roomId":          "R1",
		"track":           map[string]any{"title": "T"},
		"isPlaying":       true,
		"positionSeconds": 10,
	})
	f = expect(t, bob, core.EventPlaybackUpdated)
	var view core.PlaybackView
	require.NoError(t, json.Unmarshal(f.Data, &view))
	assert.True(t, view.IsPlaying)
	assert.InDelta(t, 10, view.PositionSeconds, 1e-9)
	assert.Equal(t, domain.Identity("Bob"), view.PublishedBy)
	assert.JSONEq(t, `{"title":"T"}`, string(view.Track))
}

func TestMessagesAndReactions(t *testing.T) {
	url := newServer(t)
	alice := dial(t, url)
	bob := dial(t, url)
	joinRoom(t, alice, "R2", "Alice")
	joinRoom(t, bob, "R2", "Bob")

	send(t, bob, map[string]any{"type": "send-message", "roomId": "R2", "identity": "Mallory", "text": "hello"})
	f := expect(t, alice, core.EventNewMessage)
	var nm core.NewMessage
	require.NoError(t, json.Unmarshal(f.Data, &nm))
	assert.Equal(t, "hello", nm.Message.Text)
	// Identity comes from the connection, not the frame.
	assert.Equal(t, domain.Identity("Bob"), nm.Message.Identity)

	send(t, bob, map[string]any{"type": "send-reaction", "roomId": "R2", "emoji": "🔥", "x": 0.25, "y": 0.75})
	f = expect(t, alice, core.EventNewReaction)
	var nr core.NewReaction
	require.NoError(t, json.Unmarshal(f.Data, &nr))
	assert.Equal(t, "🔥", nr.Reaction.Emoji)
	assert.InDelta(t, 0.25, nr.Reaction.Position.X, 1e-9)
	expect(t, alice, core.EventVibeUpdated)

	// Same emoji again within the second is refused.
	send(t, bob, map[string]any{"type": "send-reaction", "roomId": "R2", "emoji": "🔥"})
	expectError(t, bob, domain.CodeRateLimited)
}

func TestLeaveRoomKeepsConnection(t *testing.T) {
	url := newServer(t)
	alice := dial(t, url)
	joinRoom(t, alice, "R3", "Alice")

	send(t, alice, map[string]any{"type": "leave-room", "roomId": "R3"})
	expect(t, alice, core.EventLeft)

	send(t, alice, map[string]any{"type": "ping"})
	expect(t, alice, core.EventPong)

	send(t, alice, map[string]any{"type": "leave-room", "roomId": "R3"})
	expectError(t, alice, domain.CodeUnknownMember)
}

func TestRejectsBadFrames(t *testing.T) {
	url := newServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	expectError(t, conn, domain.CodeInvalidPayload)

	send(t, conn, map[string]any{"type": "join-room", "roomId": "R4"})
	reply := expectError(t, conn, domain.CodeInvalidPayload)
	assert.Equal(t, "join-room", reply.Op)

	send(t, conn, map[string]any{"type": "transfer-host", "roomId": "nowhere", "targetIdentity": "x"})
	expectError(t, conn, domain.CodeUnknownRoom)

	send(t, conn, map[string]any{"type": "dance"})
	expectError(t, conn, domain.CodeInvalidPayload)
}

func TestJoinWithoutRoomIDGeneratesOne(t *testing.T) {
	url := newServer(t)
	alice := dial(t, url)
	bob := dial(t, url)

	send(t, alice, map[string]any{"type": "join-room", "identity": "Alice"})
	f := expect(t, alice, core.EventRoomJoined)
	require.NotEmpty(t, f.RoomID)
	_, err := uuid.Parse(string(f.RoomID))
	require.NoError(t, err)

	var rj core.RoomJoined
	require.NoError(t, json.Unmarshal(f.Data, &rj))
	assert.True(t, rj.IsHost)
	assert.Equal(t, f.RoomID, rj.Room.ID)

	// The generated id is shareable.
	rj = joinRoom(t, bob, string(f.RoomID), "Bob")
	assert.False(t, rj.IsHost)
	assert.Len(t, rj.Room.Members, 2)
}

func TestMissedPongLeavesRoom(t *testing.T) {
	url := newServerWith(t, Options{PongWait: 500 * time.Millisecond, PingPeriod: 100 * time.Millisecond})
	alice := dial(t, url)
	bob := dial(t, url)

	joinRoom(t, alice, "R6", "Alice")
	// Alice never reads again, so her client never answers a ping.
	joinRoom(t, bob, "R6", "Bob")

	f := expect(t, bob, core.EventUserLeft)
	var ul core.UserLeft
	require.NoError(t, json.Unmarshal(f.Data, &ul))
	assert.Equal(t, domain.Identity("Alice"), ul.Identity)
	assert.True(t, ul.IsHost)

	f = expect(t, bob, core.EventHostTransferred)
	var ht core.HostTransferred
	require.NoError(t, json.Unmarshal(f.Data, &ht))
	assert.Equal(t, domain.Identity("Bob"), ht.NewHost)
	assert.Equal(t, core.ReasonPreviousHostLeft, ht.Reason)
}

func TestReactionQuotaIgnoresForeignRooms(t *testing.T) {
	url := newServer(t)
	alice := dial(t, url)
	joinRoom(t, alice, "R7", "Alice")

	send(t, alice, map[string]any{"type": "send-reaction", "roomId": "elsewhere", "emoji": "🔥"})
	expectError(t, alice, domain.CodeUnknownRoom)

	send(t, alice, map[string]any{"type": "send-reaction", "roomId": "R7", "emoji": "🔥"})
	f := expect(t, alice, core.EventNewReaction)
	var nr core.NewReaction
	require.NoError(t, json.Unmarshal(f.Data, &nr))
	assert.Equal(t, "🔥", nr.Reaction.Emoji)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRoomRateLimiter(2, time.Second)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, rl.Allow("a"))

	now = now.Add(5 * time.Second)
	rl.Sweep()
	assert.Zero(t, rl.Len())
}

func TestReactionPosition(t *testing.T) {
	x, y := 0.1, 0.2
	p := sendReactionPayload{X: &x, Y: &y}
	assert.Equal(t, &domain.ScreenPos{X: 0.1, Y: 0.2}, p.position())

	p.Position = &domain.ScreenPos{X: 0.5, Y: 0.5}
	assert.Equal(t, 0.5, p.position().X)

	assert.Nil(t, sendReactionPayload{X: &x}.position())
}

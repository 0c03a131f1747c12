package orch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VibeRoom/internal/app"
	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
	"github.com/dkeye/VibeRoom/internal/metrics"
	"github.com/dkeye/VibeRoom/internal/store"
	"github.com/dkeye/VibeRoom/internal/vibe"
)

// Replier sends a frame to one connection.
type Replier interface {
	Send(sid core.SessionID, frame core.Frame) bool
}

// Orchestrator maps connection-level operations onto rooms. It resolves
// which identity a connection acts as and keeps the registry and the room
// manager consistent.
type Orchestrator struct {
	Registry     *app.Registry
	Rooms        core.RoomManager
	Replies      Replier
	Store        store.Store
	Clock        func() time.Time
	StoreTimeout time.Duration
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

// Reply encodes and sends a single frame to sid.
func (o *Orchestrator) Reply(sid core.SessionID, t core.EventType, room domain.RoomID, data any) {
	if o.Replies == nil {
		return
	}
	frame, err := core.Encode(t, room, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", string(t)).Msg("encode reply")
		return
	}
	o.Replies.Send(sid, frame)
}

// Deny reports a rejected operation to its requester only. The error is
// tagged with op unless it already carries one.
func (o *Orchestrator) Deny(sid core.SessionID, room domain.RoomID, op string, err error) {
	var opErr *domain.OpError
	if op != "" && !errors.As(err, &opErr) {
		err = domain.Op(op, err)
	}
	code := domain.Code(err)
	metrics.OpsDenied.WithLabelValues(op, code).Inc()
	ev := log.Debug()
	if code == domain.CodeInternal {
		ev = log.Warn()
	}
	ev.Err(err).
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("room_id", string(room)).
		Str("op", op).
		Str("code", code).
		Msg("operation denied")
	o.Reply(sid, core.EventError, room, core.ErrorReply{Message: err.Error(), Code: code, Op: op})
}

// resolve finds the live room and the identity sid acts as in it. The
// identity is empty when sid is not a member, which rooms reject.
func (o *Orchestrator) resolve(sid core.SessionID, id domain.RoomID) (core.RoomService, domain.Identity, error) {
	room, ok := o.Rooms.Get(id)
	if !ok || !room.Active() {
		return nil, "", domain.ErrUnknownRoom
	}
	who, _ := o.Registry.IdentityIn(sid, id)
	return room, who, nil
}

func (o *Orchestrator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := o.StoreTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// storedName returns the display name a room was last stored with.
func (o *Orchestrator) storedName(id domain.RoomID) string {
	if o.Store == nil {
		return ""
	}
	ctx, cancel := o.storeCtx(context.Background())
	defer cancel()
	rec, err := o.Store.FindRoom(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ""
	case err != nil:
		metrics.StoreErrors.WithLabelValues("find_room").Inc()
		log.Warn().Err(err).Str("module", "orch").Str("room_id", string(id)).Msg("room lookup failed")
		return ""
	}
	return rec.Name
}

// TickVibes re-evaluates every active room.
func (o *Orchestrator) TickVibes() {
	now := o.now()
	for _, room := range o.Rooms.Rooms() {
		if room.Active() {
			room.TickVibe(now)
		}
	}
}

// RunVibeTicker ticks rooms until ctx is done.
func (o *Orchestrator) RunVibeTicker(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	log.Info().Str("module", "orch").Dur("every", every).Msg("vibe ticker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("vibe ticker stopped")
			return nil
		case <-t.C:
			o.TickVibes()
			o.Rooms.RefreshGauges()
		}
	}
}

// Playback returns the room's playback state projected to now.
func (o *Orchestrator) Playback(id domain.RoomID) (core.PlaybackView, bool, error) {
	room, ok := o.Rooms.Get(id)
	if !ok || !room.Active() {
		return core.PlaybackView{}, false, domain.ErrUnknownRoom
	}
	st, ok := room.Playback()
	if !ok {
		return core.PlaybackView{}, false, nil
	}
	return core.ViewOf(st, o.now()), true, nil
}

func (o *Orchestrator) Vibe(id domain.RoomID) (vibe.Reading, error) {
	room, ok := o.Rooms.Get(id)
	if !ok || !room.Active() {
		return vibe.Reading{}, domain.ErrUnknownRoom
	}
	return room.Vibe(o.now()), nil
}

func (o *Orchestrator) Snapshot(id domain.RoomID) (domain.Room, error) {
	room, ok := o.Rooms.Get(id)
	if !ok || !room.Active() {
		return domain.Room{}, domain.ErrUnknownRoom
	}
	return room.Snapshot(), nil
}

// Messages reads chat history from the store, falling back to the live
// room when the store has nothing or fails.
func (o *Orchestrator) Messages(ctx context.Context, id domain.RoomID, limit int) ([]domain.Message, error) {
	if o.Store != nil {
		sctx, cancel := o.storeCtx(ctx)
		msgs, err := o.Store.RecentMessages(sctx, id, limit)
		cancel()
		if err == nil && len(msgs) > 0 {
			return msgs, nil
		}
		if err != nil {
			metrics.StoreErrors.WithLabelValues("recent_messages").Inc()
			log.Warn().Err(err).Str("module", "orch").Str("room_id", string(id)).Msg("history read failed")
		}
	}
	room, ok := o.Rooms.Get(id)
	if !ok {
		return nil, domain.ErrUnknownRoom
	}
	msgs := room.Messages()
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Health pings the store.
func (o *Orchestrator) Health(ctx context.Context) error {
	if o.Store == nil {
		return nil
	}
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	if err := o.Store.Ping(sctx); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, err)
	}
	return nil
}

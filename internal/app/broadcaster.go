package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/metrics"
)

// Broadcaster delivers room events to connections. Each event is encoded
// once and offered to every recipient without blocking.
type Broadcaster struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
}

func NewBroadcaster(reg *Registry, policy Policy) *Broadcaster {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Broadcaster{Registry: reg, Policy: policy}
}

func (b *Broadcaster) Publish(ev core.Event) {
	frame, err := core.Encode(ev.Type, ev.Room, ev.Data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").Str("type", string(ev.Type)).Msg("encode event")
		return
	}
	metrics.EventsTotal.WithLabelValues(string(ev.Type)).Inc()
	for _, sid := range ev.To {
		sess, ok := b.Registry.GetSession(sid)
		if !ok {
			continue
		}
		if err := sess.Signal().TrySend(frame); err != nil {
			metrics.FramesDropped.Inc()
			b.onBackPressure(ev, sess, err)
		}
	}
}

// Send delivers one frame to a single connection outside any room, such as
// replies to a request.
func (b *Broadcaster) Send(sid core.SessionID, frame core.Frame) bool {
	sess, ok := b.Registry.GetSession(sid)
	if !ok {
		return false
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		metrics.FramesDropped.Inc()
		log.Debug().Err(err).Str("module", "app.broadcast").Str("sid", string(sid)).Msg("reply dropped")
		return false
	}
	return true
}

func (b *Broadcaster) onBackPressure(ev core.Event, sess core.Session, err error) {
	var room core.RoomService
	if b.Rooms != nil {
		room, _ = b.Rooms.Get(ev.Room)
	}
	switch b.Policy.OnBackPressure(room, sess) {
	case KickMember:
		log.Warn().
			Err(err).
			Str("module", "app.broadcast").
			Str("sid", string(sess.ID())).
			Str("room_id", string(ev.Room)).
			Str("type", string(ev.Type)).
			Msg("slow consumer kicked")
		b.Registry.Cancel(sess.ID())
		sess.Signal().Close()
	case DropFrame, NoAction:
		log.Debug().
			Err(err).
			Str("module", "app.broadcast").
			Str("sid", string(sess.ID())).
			Str("type", string(ev.Type)).
			Msg("frame dropped")
	}
}

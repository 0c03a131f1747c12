package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
	"github.com/dkeye/VibeRoom/internal/metrics"
)

// Left reasons sent to the connection that loses a membership.
const (
	LeftRequested = "requested"
	LeftReplaced  = "replaced"
)

// joinAttempts bounds retries when a join races with the room closing.
const joinAttempts = 3

// Join puts sid into room id as req.Identity. Joining a room the
// connection already holds under another identity leaves that one first.
func (o *Orchestrator) Join(sid core.SessionID, id domain.RoomID, req core.JoinRequest) (core.JoinResult, error) {
	if _, ok := o.Registry.GetSession(sid); !ok {
		return core.JoinResult{}, domain.ErrTransportFailure
	}
	if prev, ok := o.Registry.IdentityIn(sid, id); ok && prev != req.Identity {
		o.leave(sid, id, prev)
	}
	if req.Name == "" {
		if room, ok := o.Rooms.Get(id); !ok || !room.Active() {
			req.Name = o.storedName(id)
		}
	}

	var (
		room core.RoomService
		res  core.JoinResult
		err  error
	)
	for range joinAttempts {
		room = o.Rooms.GetOrCreate(id)
		res, err = room.Join(sid, req)
		if !errors.Is(err, domain.ErrRoomClosed) {
			break
		}
		o.Rooms.Remove(room)
	}
	if err != nil {
		return res, err
	}

	if _, ok := o.Registry.AddMembership(sid, id, req.Identity); !ok {
		// The connection went away while joining.
		o.leaveRoom(room, sid, req.Identity)
		return core.JoinResult{}, domain.ErrTransportFailure
	}
	if res.Reconnected && res.PreviousConn != "" && res.PreviousConn != sid {
		o.Registry.RemoveMembership(res.PreviousConn, id)
		o.Reply(res.PreviousConn, core.EventLeft, id, core.Left{Reason: LeftReplaced})
	}
	o.Rooms.RefreshGauges()

	log.Info().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("client", o.Registry.Client(sid)).
		Str("room_id", string(id)).
		Str("identity", string(req.Identity)).
		Bool("host", res.IsHost).
		Msg("joined room")
	return res, nil
}

// Leave removes sid's membership in room id.
func (o *Orchestrator) Leave(sid core.SessionID, id domain.RoomID) error {
	who, ok := o.Registry.IdentityIn(sid, id)
	if !ok {
		return domain.ErrUnknownMember
	}
	if err := o.leave(sid, id, who); err != nil {
		return err
	}
	o.Reply(sid, core.EventLeft, id, core.Left{Reason: LeftRequested})
	return nil
}

// OnDisconnect drops every membership the connection held.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	rooms := o.Registry.Unbind(sid)
	for id, who := range rooms {
		room, ok := o.Rooms.Get(id)
		if !ok {
			continue
		}
		o.leaveRoom(room, sid, who)
	}
	if len(rooms) > 0 {
		o.Rooms.RefreshGauges()
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("disconnected")
}

func (o *Orchestrator) leave(sid core.SessionID, id domain.RoomID, who domain.Identity) error {
	o.Registry.RemoveMembership(sid, id)
	room, ok := o.Rooms.Get(id)
	if !ok {
		return domain.ErrUnknownRoom
	}
	err := o.leaveRoom(room, sid, who)
	o.Rooms.RefreshGauges()
	return err
}

func (o *Orchestrator) leaveRoom(room core.RoomService, sid core.SessionID, who domain.Identity) error {
	res, err := room.Leave(who, sid)
	if err != nil {
		log.Debug().
			Err(err).
			Str("module", "orch").
			Str("sid", string(sid)).
			Str("room_id", string(room.ID())).
			Str("identity", string(who)).
			Msg("leave ignored")
		return err
	}
	if res.NewHost != "" {
		metrics.HostElections.WithLabelValues(core.ReasonPreviousHostLeft).Inc()
	}
	if res.Closed {
		o.Rooms.Remove(room)
	}
	log.Info().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("room_id", string(room.ID())).
		Str("identity", string(who)).
		Bool("closed", res.Closed).
		Msg("left room")
	return nil
}

// TransferHost hands the host role from the requester to target.
func (o *Orchestrator) TransferHost(sid core.SessionID, id domain.RoomID, target domain.Identity) error {
	room, who, err := o.resolve(sid, id)
	if err != nil {
		return err
	}
	if err := room.TransferHost(who, sid, target); err != nil {
		return err
	}
	if target != who {
		metrics.HostElections.WithLabelValues(core.ReasonExplicit).Inc()
	}
	return nil
}

package signal

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
)

func (ctl *SignalWSController) handleJoin(sid core.SessionID, data []byte) {
	var p joinRoomPayload
	if err := decode(data, &p); err != nil {
		ctl.deny(sid, "", opJoinRoom, err)
		return
	}
	roomID := domain.NewRoomID()
	if strings.TrimSpace(p.RoomID) != "" {
		parsed, err := domain.ParseRoomID(p.RoomID)
		if err != nil {
			ctl.deny(sid, "", opJoinRoom, err)
			return
		}
		roomID = parsed
	}
	who, err := domain.NewIdentity(p.Identity)
	if err != nil {
		ctl.deny(sid, roomID, opJoinRoom, err)
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", string(roomID)).Msg("join")
	// room-joined and user-joined are published by the room itself.
	if _, err := ctl.Orch.Join(sid, roomID, core.JoinRequest{Identity: who, Avatar: p.Avatar, Name: p.Name}); err != nil {
		ctl.deny(sid, roomID, opJoinRoom, err)
	}
}

// handleLeave leaves one room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, data []byte) {
	var p roomPayload
	if err := decode(data, &p); err != nil {
		ctl.deny(sid, "", opLeaveRoom, err)
		return
	}
	roomID := domain.RoomID(p.RoomID)
	if err := ctl.Orch.Leave(sid, roomID); err != nil {
		ctl.deny(sid, roomID, opLeaveRoom, err)
	}
}

func (ctl *SignalWSController) handleTransferHost(sid core.SessionID, data []byte) {
	var p transferHostPayload
	if err := decode(data, &p); err != nil {
		ctl.deny(sid, "", opTransferHost, err)
		return
	}
	roomID := domain.RoomID(p.RoomID)
	if err := ctl.Orch.TransferHost(sid, roomID, domain.Identity(p.TargetIdentity)); err != nil {
		ctl.deny(sid, roomID, opTransferHost, err)
	}
}

package signal

import (
	"fmt"

	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
)

func (ctl *SignalWSController) handleSendMessage(sid core.SessionID, data []byte) {
	var p sendMessagePayload
	if err := decode(data, &p); err != nil {
		ctl.deny(sid, "", opSendMessage, err)
		return
	}
	roomID := domain.RoomID(p.RoomID)
	if _, err := ctl.Orch.SendMessage(sid, roomID, p.Text, p.Emoji); err != nil {
		ctl.deny(sid, roomID, opSendMessage, err)
	}
}

func (ctl *SignalWSController) handleSendReaction(sid core.SessionID, data []byte) {
	var p sendReactionPayload
	if err := decode(data, &p); err != nil {
		ctl.deny(sid, "", opSendReaction, err)
		return
	}
	roomID := domain.RoomID(p.RoomID)
	// Only members spend quota; the room rejects everyone else below.
	if _, member := ctl.Orch.Registry.IdentityIn(sid, roomID); member &&
		!ctl.Reactions.Allow(fmt.Sprintf("%s|%s|%s", sid, roomID, p.Emoji)) {
		ctl.deny(sid, roomID, opSendReaction, domain.ErrRateLimited)
		return
	}
	if _, err := ctl.Orch.SendReaction(sid, roomID, p.Emoji, p.position()); err != nil {
		ctl.deny(sid, roomID, opSendReaction, err)
	}
}

package orch

import (
	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
)

func (o *Orchestrator) UpdatePlayback(sid core.SessionID, id domain.RoomID, upd core.PlaybackUpdate) (domain.PlaybackState, error) {
	room, who, err := o.resolve(sid, id)
	if err != nil {
		return domain.PlaybackState{}, err
	}
	return room.Publish(who, sid, upd)
}

func (o *Orchestrator) SendMessage(sid core.SessionID, id domain.RoomID, text, emoji string) (domain.Message, error) {
	room, who, err := o.resolve(sid, id)
	if err != nil {
		return domain.Message{}, err
	}
	return room.PostMessage(who, sid, text, emoji)
}

func (o *Orchestrator) SendReaction(sid core.SessionID, id domain.RoomID, emoji string, pos *domain.ScreenPos) (domain.Reaction, error) {
	room, who, err := o.resolve(sid, id)
	if err != nil {
		return domain.Reaction{}, err
	}
	return room.React(who, sid, emoji, pos)
}

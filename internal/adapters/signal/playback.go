package signal

import (
	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
)

func (ctl *SignalWSController) handleUpdatePlayback(sid core.SessionID, data []byte) {
	var p updatePlaybackPayload
	if err := decode(data, &p); err != nil {
		ctl.deny(sid, "", opUpdatePlayback, err)
		return
	}
	roomID := domain.RoomID(p.RoomID)
	_, err := ctl.Orch.UpdatePlayback(sid, roomID, core.PlaybackUpdate{
		Track:           p.Track,
		IsPlaying:       p.IsPlaying,
		PositionSeconds: p.PositionSeconds,
		DurationSeconds: p.DurationSeconds,
	})
	if err != nil {
		ctl.deny(sid, roomID, opUpdatePlayback, err)
	}
}

package signal

import "github.com/dkeye/VibeRoom/internal/core"

func (ctl *SignalWSController) handlePing(sid core.SessionID) {
	ctl.Orch.Reply(sid, core.EventPong, "", nil)
}

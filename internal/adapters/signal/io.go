package signal

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
)

// Client operations.
const (
	opJoinRoom       = "join-room"
	opLeaveRoom      = "leave-room"
	opSendMessage    = "send-message"
	opSendReaction   = "send-reaction"
	opUpdatePlayback = "update-playback"
	opTransferHost   = "transfer-host"
	opPing           = "ping"
)

// writePump owns all writes to the socket, including liveness pings.
func (ctl *SignalWSController) writePump(ctx context.Context, sid core.SessionID, c *wsSignalConn) {
	ping := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ping.Stop()
		// Unblocks readPump, which owns the disconnect.
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(ctl.opts.WriteWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("ping failed")
				return
			}
		}
	}
}

// readPump reads client frames until the socket fails or the peer misses
// a pong, then runs the disconnect.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Orch.OnDisconnect(sid)
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().
					Err(errors.Join(domain.ErrTransportFailure, err)).
					Str("module", "signal").
					Str("sid", string(sid)).
					Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
		ctl.handleSignal(sid, data)
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.deny(sid, "", "", errors.Join(domain.ErrInvalidPayload, err))
		return
	}

	switch env.Type {
	case opJoinRoom:
		ctl.handleJoin(sid, data)
	case opLeaveRoom:
		ctl.handleLeave(sid, data)
	case opTransferHost:
		ctl.handleTransferHost(sid, data)
	case opUpdatePlayback:
		ctl.handleUpdatePlayback(sid, data)
	case opSendMessage:
		ctl.handleSendMessage(sid, data)
	case opSendReaction:
		ctl.handleSendReaction(sid, data)
	case opPing:
		ctl.handlePing(sid)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.deny(sid, "", env.Type, domain.ErrInvalidPayload)
	}
}

func (ctl *SignalWSController) deny(sid core.SessionID, room domain.RoomID, op string, err error) {
	ctl.Orch.Deny(sid, room, op, err)
}

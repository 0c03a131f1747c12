package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/VibeRoom/internal/app/orch"
	"github.com/dkeye/VibeRoom/internal/domain"
)

const defaultHistory = 50

type handlers struct {
	orch *orch.Orchestrator
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownRoom):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrRoomIDEmpty), errors.Is(err, domain.ErrRoomIDTooLong):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error(), "code": domain.Code(err)})
}

func roomParam(c *gin.Context) (domain.RoomID, bool) {
	id, err := domain.ParseRoomID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return "", false
	}
	return id, true
}

func (h *handlers) health(c *gin.Context) {
	if err := h.orch.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       len(h.orch.Rooms.List()),
		"connections": h.orch.Registry.Count(),
	})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *handlers) getRoom(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	snap, err := h.orch.Snapshot(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) getMessages(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	limit := defaultHistory
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			fail(c, domain.ErrInvalidPayload)
			return
		}
		limit = n
	}
	msgs, err := h.orch.Messages(c.Request.Context(), id, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": id, "messages": msgs})
}

func (h *handlers) getPlayback(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	view, has, err := h.orch.Playback(id)
	if err != nil {
		fail(c, err)
		return
	}
	if !has {
		c.JSON(http.StatusOK, gin.H{"roomId": id, "playback": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": id, "playback": view})
}

func (h *handlers) getVibe(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	rd, err := h.orch.Vibe(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": id, "vibe": rd})
}

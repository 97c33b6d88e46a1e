package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Glimpse/internal/core"
)

type handlers struct {
	ctx  context.Context
	ctrl Controller
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// events streams a snapshot on every state change as server-sent events.
func (h *handlers) events(c *gin.Context) {
	ch, stop := h.ctrl.Subscribe(8)
	defer stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-h.ctx.Done():
			return false
		case <-c.Request.Context().Done():
			return false
		case snap, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("state", snap)
			return true
		}
	})
}

func (h *handlers) approve(c *gin.Context) { h.act(c, "approve", h.ctrl.Approve) }
func (h *handlers) deny(c *gin.Context)    { h.act(c, "deny", h.ctrl.Deny) }
func (h *handlers) endRoom(c *gin.Context) { h.act(c, "end room", h.ctrl.EndRoom) }

func (h *handlers) close(c *gin.Context) {
	h.ctrl.Close()
	c.JSON(http.StatusAccepted, h.ctrl.Snapshot())
}

func (h *handlers) act(c *gin.Context, name string, fn func(context.Context) error) {
	if err := fn(c.Request.Context()); err != nil {
		status := statusOf(err)
		log.Warn().
			Str("module", "adapters.http").
			Str("request_id", c.GetString("request_id")).
			Str("action", name).
			Err(err).
			Msg("action failed")
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrNoPendingRequest):
		return http.StatusConflict
	case errors.Is(err, core.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, core.ErrMissingIdentity):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

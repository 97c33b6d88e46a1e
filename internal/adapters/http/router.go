// Package http serves the local control API of a running session.
package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Glimpse/internal/app/session"
	"github.com/dkeye/Glimpse/internal/config"
)

// Controller is the part of *session.Session the API drives.
type Controller interface {
	Snapshot() session.Snapshot
	Subscribe(buf int) (<-chan session.Snapshot, func())
	Approve(ctx context.Context) error
	Deny(ctx context.Context) error
	EndRoom(ctx context.Context) error
	Close()
}

var _ Controller = (*session.Session)(nil)

const requestIDHeader = "X-Request-Id"

// RequestIDMiddleware tags every call with an id, keeping the caller's if sent.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctrl Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	h := &handlers{ctx: ctx, ctrl: ctrl}

	api := r.Group("/api")
	api.GET("/session", h.snapshot)
	api.GET("/session/events", h.events)
	api.POST("/session/close", h.close)
	api.POST("/join/approve", h.approve)
	api.POST("/join/deny", h.deny)
	api.POST("/room/end", h.endRoom)

	log.Info().Str("module", "adapters.http").Str("listen", cfg.Listen).Msg("router setup")
	return r
}

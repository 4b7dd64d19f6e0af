package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/adapters/signal"
	"github.com/maxklim/huddle/internal/auth"
	"github.com/maxklim/huddle/internal/config"
	"github.com/maxklim/huddle/internal/core"
	"github.com/maxklim/huddle/internal/domain"
	"github.com/maxklim/huddle/internal/metrics"
	"github.com/maxklim/huddle/internal/store"
)

// AuthMiddleware verifies the connect token (query param or bearer header)
// and attaches the resolved identity. Rejections never reach the room layer.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			h := c.GetHeader("Authorization")
			token = strings.TrimPrefix(h, "Bearer ")
		}
		identity, err := verifier.Verify(token)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("authentication rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication_failure"})
			return
		}
		c.Set("identity", identity)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, reg *core.Registry, st store.MeetingStore, ctrl *signal.Controller, verifier *auth.Verifier) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": reg.List()})
	})

	// Meeting creation is served only when the configured store can mint
	// records (the dev in-memory store); production owns this elsewhere.
	if creator, ok := st.(store.MeetingCreator); ok {
		api.POST("/meetings", func(c *gin.Context) {
			var req struct {
				RoomID     string `json:"room_id" binding:"required"`
				HostUserID string `json:"host_user_id" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing room_id or host_user_id"})
				return
			}
			err := creator.CreateMeeting(c.Request.Context(), domain.RoomID(req.RoomID), domain.UserID(req.HostUserID))
			if errors.Is(err, store.ErrMeetingExists) {
				c.JSON(http.StatusConflict, gin.H{"error": "meeting_exists"})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "persistence_failure"})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"room_id": req.RoomID})
		})
	}

	api.GET("/ws/signal", AuthMiddleware(verifier), func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

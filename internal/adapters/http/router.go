package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codesketch/hub/internal/adapters/signal"
	"github.com/codesketch/hub/internal/auth"
	"github.com/codesketch/hub/internal/config"
	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/domain"
)

// SetupRouter wires the realtime endpoint and the stateless side
// endpoints (existence check, health, metrics, room diagnostics).
func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller, store *core.RoomStore, jwtMgr *auth.JWTManager) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HubSession", cookieStore))

	started := time.Now()

	r.GET("/room/:roomId/exists", func(c *gin.Context) {
		roomID := c.Param("roomId")
		if _, err := uuid.Parse(roomID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"exists": store.RoomExists(domain.RoomID(roomID))})
	})

	r.GET("/room/:roomId/info", func(c *gin.Context) {
		roomID := c.Param("roomId")
		if _, err := uuid.Parse(roomID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		info := store.Snapshot(domain.RoomID(roomID))
		if info == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, info)
	})

	r.GET("/health", func(c *gin.Context) {
		stats := store.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"uptime":    int(time.Since(started).Seconds()),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"rooms":     stats.TotalRooms,
			"clients":   stats.TotalMembers,
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		stats := store.Stats()
		body := fmt.Sprintf(`# HELP codesketch_rooms_total Total number of active rooms
# TYPE codesketch_rooms_total gauge
codesketch_rooms_total %d

# HELP codesketch_clients_total Total number of connected clients
# TYPE codesketch_clients_total gauge
codesketch_clients_total %d

# HELP codesketch_uptime_seconds Server uptime in seconds
# TYPE codesketch_uptime_seconds counter
codesketch_uptime_seconds %d
`, stats.TotalRooms, stats.TotalMembers, int(time.Since(started).Seconds()))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	api := r.Group("/api")
	api.GET("/ws", auth.Middleware(jwtMgr, !cfg.Hardened()), func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	return r
}

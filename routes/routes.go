package routes

import (
	"net/http"

	"PitchChat/middleware"
	"PitchChat/pkg/database"
	"PitchChat/pkg/realtime"
	"PitchChat/pkg/services"
	"PitchChat/pkg/token"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	convRoutes "PitchChat/routes/conversation"
	websocketRoutes "PitchChat/routes/websocket"
)

// Deps is everything the handlers are built from.
type Deps struct {
	DB         *gorm.DB
	Chat       *services.ChatService
	Hub        *realtime.Hub
	Tokens     *token.Manager
	Limiter    *middleware.LimiterStore
	CookieName string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "pitch chat backend running"})
	})
	r.GET("/healthz", func(c *gin.Context) {
		if err := database.Ping(c.Request.Context(), d.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"online": d.Hub.OnlineCount()}})
	})

	websocketRoutes.Register(r, d.Hub, d.Tokens, d.CookieName)

	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware(d.Tokens, d.CookieName))
	convRoutes.Register(protected, d.Chat, d.Limiter)
}

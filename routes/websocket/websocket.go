package websocket

import (
	"PitchChat/controllers"
	"PitchChat/pkg/realtime"

	"github.com/gin-gonic/gin"
)

// Register mounts the socket endpoint. It authenticates on its own, from the
// token query parameter, the Authorization header or the auth cookie.
func Register(r *gin.Engine, hub *realtime.Hub, v realtime.Verifier, cookieName string) {
	r.GET("/ws", controllers.ChatWS(hub, v, cookieName))
}

package controllers

import (
	"errors"
	"net/http"
	"slices"

	"PitchChat/pkg/config"
	"PitchChat/pkg/realtime"
	"PitchChat/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     allowedOrigin,
}

// allowedOrigin accepts browsers from the CORS allow list and non-browser
// clients, which send no Origin header.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(config.CORSOrigins, "*") || slices.Contains(config.CORSOrigins, origin)
}

// ChatWS authenticates a socket connection before upgrading it and then hands
// it to the hub for its whole lifetime. A rejected attempt never reaches the
// hub, so no event handler runs for it.
func ChatWS(hub *realtime.Hub, v realtime.Verifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := realtime.Authenticate(c.Request, cookieName, v)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, token.ErrMissingCredential) {
				msg = "authentication required"
			}
			fail(c, http.StatusUnauthorized, msg)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("component", "ws").Msg("upgrade failed")
			return
		}
		hub.Serve(c.Request.Context(), conn, id)
	}
}

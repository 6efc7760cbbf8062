package controllers

import (
	"errors"
	"net/http"

	"PitchChat/middleware"
	"PitchChat/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// every REST response is {success, message?, data}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func okMessage(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, gin.H{"success": true, "message": msg, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg, "data": nil})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// failErr maps a service error to its status and a caller-safe message.
func failErr(c *gin.Context, err error) {
	status := statusFor(err)
	ev := log.Warn()
	if status >= 500 {
		ev = log.Error()
	}
	ev.Err(err).
		Str("component", "http").
		Str("conversation_id", c.Param("id")).
		Str("user_id", c.GetString(middleware.ContextUserIDKey)).
		Msg("request failed")
	_ = c.Error(err)
	fail(c, status, services.PublicMessage(err))
}

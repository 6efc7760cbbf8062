package controllers

import (
	"net/http/httptest"
	"testing"

	"PitchChat/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestAllowedOrigin(t *testing.T) {
	prev := config.CORSOrigins
	t.Cleanup(func() { config.CORSOrigins = prev })
	config.CORSOrigins = []string{"https://app.example"}

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, allowedOrigin(r), "no Origin header")

	r.Header.Set("Origin", "https://app.example")
	assert.True(t, allowedOrigin(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, allowedOrigin(r))

	config.CORSOrigins = []string{"*"}
	assert.True(t, allowedOrigin(r))
}

package main

import (
	"testing"
	"time"

	"PitchChat/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws", socketURL("http://localhost:8080"))
	assert.Equal(t, "wss://chat.example.com/ws", socketURL("https://chat.example.com"))
}

func TestSubject(t *testing.T) {
	tok, _, err := token.NewManager("any-secret", time.Hour).Sign(token.Identity{UserID: "u-1", Role: "investor"})
	require.NoError(t, err)
	sub, err := subject(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", sub)

	_, err = subject("not-a-token")
	assert.Error(t, err)
}

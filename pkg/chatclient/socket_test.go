package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"PitchChat/models"
	"PitchChat/pkg/wire"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestBackoffDoublesUpToMax(t *testing.T) {
	cfg := SocketConfig{}.withDefaults()
	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, cfg.backoff(i))
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 16 * time.Second,
	}, got)
	assert.Equal(t, 5, cfg.MaxReconnects)
}

func TestDialSocketUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := DialSocket(context.Background(), SocketConfig{URL: wsURL(srv, "/ws"), Token: "bad"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

// TestSocketRejoinsAfterReconnect drops the first connection once the client
// has joined a room, then expects the join to be replayed on the next one.
func TestSocketRejoinsAfterReconnect(t *testing.T) {
	var conns atomic.Int32
	rejoined := make(chan wire.Envelope, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if n == 1 {
			return
		}
		var e wire.Envelope
		if json.Unmarshal(raw, &e) == nil {
			rejoined <- e
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sock, err := DialSocket(ctx, SocketConfig{URL: wsURL(srv, "/ws"), Token: "tok", BaseDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- sock.Run(ctx, func(wire.Envelope) {}) }()
	require.NoError(t, sock.Join("c1"))

	select {
	case e := <-rejoined:
		assert.Equal(t, wire.JoinConversation, e.Event)
		var ref wire.ConversationRef
		require.NoError(t, json.Unmarshal(e.Data, &ref))
		assert.Equal(t, "c1", ref.ConversationID)
	case <-time.After(5 * time.Second):
		t.Fatal("room was not rejoined")
	}

	require.NoError(t, sock.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestSocketGivesUpAfterMaxReconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) > 1 {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	sock, err := DialSocket(context.Background(), SocketConfig{URL: wsURL(srv, "/ws"), MaxReconnects: 2, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	err = sock.Run(context.Background(), func(wire.Envelope) {})
	assert.ErrorIs(t, err, ErrReconnectFailed)
	assert.Equal(t, int32(3), conns.Load())
	assert.ErrorIs(t, sock.Emit(wire.TypingStart, wire.ConversationRef{ConversationID: "c1"}), ErrNotConnected)
}

type stubSender struct {
	msg   *models.Message
	err   error
	calls int
}

func (s *stubSender) Send(context.Context, string, string, models.MessageType) (*models.Message, error) {
	s.calls++
	return s.msg, s.err
}

func TestFallbackSender(t *testing.T) {
	stored := &models.Message{ID: "m1"}

	primary := &stubSender{err: ErrNotConnected}
	fallback := &stubSender{msg: stored}
	got, err := FallbackSender{Primary: primary, Fallback: fallback}.Send(context.Background(), "c1", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.Equal(t, 1, fallback.calls)

	// server verdicts are final
	primary = &stubSender{err: &APIError{Status: http.StatusForbidden, Message: "forbidden"}}
	fallback = &stubSender{msg: stored}
	_, err = FallbackSender{Primary: primary, Fallback: fallback}.Send(context.Background(), "c1", "hi", "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Zero(t, fallback.calls)

	primary = &stubSender{}
	fallback = &stubSender{msg: stored}
	got, err = FallbackSender{Primary: primary, Fallback: fallback}.Send(context.Background(), "c1", "hi", "")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, fallback.calls)
}

func TestSocketSenderWithoutSocket(t *testing.T) {
	_, err := SocketSender{}.Send(context.Background(), "c1", "hi", "")
	assert.ErrorIs(t, err, ErrNotConnected)
}

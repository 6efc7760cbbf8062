package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"PitchChat/pkg/logger"
	"PitchChat/pkg/wire"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrUnauthorized means the server rejected the credential. Reconnecting
	// with the same credential cannot succeed.
	ErrUnauthorized = errors.New("socket authentication failed")
	// ErrNotConnected is returned by writes while the socket is down.
	ErrNotConnected = errors.New("socket not connected")
	// ErrReconnectFailed ends Run once every reconnect attempt has failed.
	ErrReconnectFailed = errors.New("socket reconnect attempts exhausted")
)

// SocketConfig configures the connection and its reconnect policy.
type SocketConfig struct {
	URL              string        // ws://host/ws
	Token            string        // bearer credential
	HandshakeTimeout time.Duration // default 10s
	MaxReconnects    int           // default 5
	BaseDelay        time.Duration // default 1s, doubled per attempt
	MaxDelay         time.Duration // default 16s
}

func (c SocketConfig) withDefaults() SocketConfig {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 16 * time.Second
	}
	return c
}

// backoff is the wait before reconnect attempt n (0-based).
func (c SocketConfig) backoff(n int) time.Duration {
	d := c.BaseDelay
	for i := 0; i < n && d < c.MaxDelay; i++ {
		d *= 2
	}
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Socket is a reconnecting realtime connection. Rooms joined through it are
// joined again after a reconnect.
type Socket struct {
	cfg    SocketConfig
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	rooms  map[string]struct{}
	closed bool

	writeMu sync.Mutex
}

// DialSocket connects once. It does not retry: a failed first connection,
// authentication failures in particular, is reported to the caller.
func DialSocket(ctx context.Context, cfg SocketConfig) (*Socket, error) {
	cfg = cfg.withDefaults()
	s := &Socket{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		log:    logger.For("chatclient"),
		rooms:  make(map[string]struct{}),
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	h := http.Header{}
	if s.cfg.Token != "" {
		h.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, h)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	return conn, nil
}

// Run reads events and passes them to handle until ctx ends or the
// connection cannot be restored.
func (s *Socket) Run(ctx context.Context, handle func(wire.Envelope)) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn := s.current()
		if conn == nil {
			return ErrNotConnected
		}
		err := s.readLoop(conn, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.isClosed() {
			return nil
		}
		s.log.Warn().Err(err).Msg("socket disconnected")
		if err := s.reconnect(ctx); err != nil {
			return err
		}
	}
}

func (s *Socket) readLoop(conn *websocket.Conn, handle func(wire.Envelope)) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env wire.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.log.Debug().Err(err).Msg("skipping malformed frame")
			continue
		}
		handle(env)
	}
}

func (s *Socket) reconnect(ctx context.Context) error {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()

	for attempt := 0; attempt < s.cfg.MaxReconnects; attempt++ {
		delay := s.cfg.backoff(attempt)
		s.log.Info().Int("attempt", attempt+1).Dur("delay", delay).Msg("reconnecting")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		conn, err := s.dial(ctx)
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		if err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("reconnect failed")
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conn = conn
		rooms := make([]string, 0, len(s.rooms))
		for id := range s.rooms {
			rooms = append(rooms, id)
		}
		s.mu.Unlock()
		for _, id := range rooms {
			if err := s.Emit(wire.JoinConversation, wire.ConversationRef{ConversationID: id}); err != nil {
				s.log.Warn().Err(err).Str("conversation_id", id).Msg("rejoin failed")
			}
		}
		return nil
	}
	return ErrReconnectFailed
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Socket) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Emit writes one event.
func (s *Socket) Emit(event string, data any) error {
	frame, err := wire.Encode(event, data)
	if err != nil {
		return err
	}
	conn := s.current()
	if conn == nil {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Join asks to join a room and remembers it for reconnects.
func (s *Socket) Join(conversationID string) error {
	s.mu.Lock()
	s.rooms[conversationID] = struct{}{}
	s.mu.Unlock()
	return s.Emit(wire.JoinConversation, wire.ConversationRef{ConversationID: conversationID})
}

func (s *Socket) Leave(conversationID string) error {
	s.mu.Lock()
	delete(s.rooms, conversationID)
	s.mu.Unlock()
	return s.Emit(wire.LeaveConversation, wire.ConversationRef{ConversationID: conversationID})
}

// Close ends the connection; Run returns instead of reconnecting.
func (s *Socket) Close() error {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return conn.Close()
}

package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"PitchChat/pkg/logger"
	"PitchChat/pkg/token"
	"PitchChat/pkg/wire"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// Client is one authenticated socket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity token.Identity
	limiter  *rate.Limiter
	log      zerolog.Logger

	// rooms is guarded by hub.mu
	rooms map[string]struct{}

	closeOnce sync.Once
}

func (h *Hub) newClient(conn *websocket.Conn, id token.Identity) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, h.opts.SendBuffer),
		identity: id,
		limiter:  h.newLimiter(),
		log:      logger.For("ws").With().Str("user_id", id.UserID).Logger(),
		rooms:    make(map[string]struct{}),
	}
}

func (c *Client) UserID() string { return c.identity.UserID }

func (c *Client) close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

// Serve registers an authenticated connection and pumps it until it closes.
// It blocks for the lifetime of the connection.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, id token.Identity) {
	c := h.newClient(conn, id)
	h.Register(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump()
	if n, err := h.chat.UnreadCount(ctx, id.UserID); err == nil {
		h.SendTo(c, wire.UnreadCount, wire.UnreadCountPayload{Count: n})
	}
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug().Err(err).Msg("read error")
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if !c.limiter.Allow() {
			c.sendError("rate limit exceeded")
			continue
		}
		ev, err := DecodeInbound(raw)
		if err != nil {
			if errors.Is(err, errUnknownEvent) {
				c.sendError(errUnknownEvent.Error())
			} else {
				c.sendError(errMalformedFrame.Error())
			}
			continue
		}

		evCtx, cancel := context.WithTimeout(ctx, c.hub.opts.EventTimeout)
		c.hub.dispatch(evCtx, c, ev)
		cancel()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub dropped this client
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(msg string) {
	c.hub.SendTo(c, wire.Error, wire.ErrorPayload{Message: msg})
}

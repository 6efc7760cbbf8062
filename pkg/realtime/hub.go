// Package realtime owns the live socket connections: presence, conversation
// rooms and room-scoped broadcast. Nothing outside this package touches the
// connection registries; REST handlers only reach the hub through the
// services.Notifier it implements.
package realtime

import (
	"context"
	"sync"
	"time"

	"PitchChat/models"
	"PitchChat/pkg/logger"
	"PitchChat/pkg/services"
	"PitchChat/pkg/wire"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ChatService is the part of the dispatcher the socket handlers call.
type ChatService interface {
	Authorize(ctx context.Context, conversationID, userID string) (*models.Conversation, error)
	SendMessage(ctx context.Context, in services.SendInput) (*models.Message, error)
	MarkAsRead(ctx context.Context, conversationID, userID string) (*services.ReadResult, error)
	MarkAsReadQuietly(ctx context.Context, conversationID, userID string) (*services.ReadResult, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// Options tunes per-connection behaviour.
type Options struct {
	EventsPerSecond float64
	EventBurst      int
	SendBuffer      int
	EventTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = 10
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.EventTimeout <= 0 {
		o.EventTimeout = 10 * time.Second
	}
	return o
}

// Hub is the process-local registry of connections, the online map and the
// conversation rooms. All three are guarded by mu, and every write into a
// client's send buffer happens under mu, so frames for one room reach each
// member in the order the broadcasts were made.
type Hub struct {
	chat ChatService
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	online  map[string]*Client
	rooms   map[string]map[*Client]struct{}
}

func NewHub(chat ChatService, opts Options) *Hub {
	return &Hub{
		chat:    chat,
		opts:    opts.withDefaults(),
		log:     logger.For("hub"),
		clients: make(map[*Client]struct{}),
		online:  make(map[string]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(h.opts.EventsPerSecond), h.opts.EventBurst)
}

// Register adds c, makes it the user's online connection and tells every
// other connection. A second connection for the same user replaces the first
// in the online map.
func (h *Hub) Register(c *Client) {
	frame := mustEncode(wire.UserOnline, wire.PresencePayload{UserID: c.UserID()})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.online[c.UserID()] = c
	h.fanoutLocked(h.clients, c, frame)
	h.log.Debug().Str("user_id", c.UserID()).Int("connections", len(h.clients)).Msg("client registered")
}

// Unregister removes c from every room. If c is still the user's online
// connection the user goes offline.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked forgets c and closes its send buffer. Callers hold mu.
func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for id := range c.rooms {
		h.leaveLocked(c, id)
	}
	close(c.send)

	if h.online[c.UserID()] != c {
		return
	}
	delete(h.online, c.UserID())
	h.fanoutLocked(h.clients, nil, mustEncode(wire.UserOffline, wire.PresencePayload{UserID: c.UserID()}))
	h.log.Debug().Str("user_id", c.UserID()).Msg("user offline")
}

// fanoutLocked queues frame for every client in set except skip. Clients
// whose buffer is full are dropped. Callers hold mu.
func (h *Hub) fanoutLocked(set map[*Client]struct{}, skip *Client, frame []byte) {
	var slow []*Client
	for c := range set {
		if c == skip {
			continue
		}
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.log.Warn().Str("user_id", c.UserID()).Msg("dropping slow client")
		h.dropLocked(c)
	}
}

// JoinRoom subscribes c to the conversation's broadcasts.
func (h *Hub) JoinRoom(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	room := h.rooms[conversationID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[conversationID] = room
	}
	room[c] = struct{}{}
	c.rooms[conversationID] = struct{}{}
}

// LeaveRoom is idempotent.
func (h *Hub) LeaveRoom(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, conversationID)
}

func (h *Hub) leaveLocked(c *Client, conversationID string) {
	delete(c.rooms, conversationID)
	room := h.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
}

// InRoom reports whether c has joined the conversation.
func (h *Hub) InRoom(c *Client, conversationID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := c.rooms[conversationID]
	return ok
}

// EvictRoom removes every member from the room.
func (h *Hub) EvictRoom(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[conversationID] {
		delete(c.rooms, conversationID)
	}
	delete(h.rooms, conversationID)
}

// BroadcastToRoom sends an event to every connection joined to the room.
func (h *Hub) BroadcastToRoom(conversationID, event string, payload any) {
	h.BroadcastToRoomExcept(conversationID, nil, event, payload)
}

// BroadcastToRoomExcept is BroadcastToRoom without the skip connection.
func (h *Hub) BroadcastToRoomExcept(conversationID string, skip *Client, event string, payload any) {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode failed")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if room := h.rooms[conversationID]; len(room) > 0 {
		h.fanoutLocked(room, skip, frame)
	}
}

// SendTo delivers an event to one connection. It reports false when the
// connection is gone or was dropped for being slow.
func (h *Hub) SendTo(c *Client, event string, payload any) bool {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode failed")
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		h.log.Warn().Str("user_id", c.UserID()).Msg("dropping slow client")
		h.dropLocked(c)
		return false
	}
}

// IsOnline reports whether the user has a live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.online[userID]
	return ok
}

// OnlineCount is the number of users with a live connection.
func (h *Hub) OnlineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.online)
}

// Shutdown closes every connection. The read pumps unregister themselves.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
	h.log.Info().Int("connections", len(clients)).Msg("hub shut down")
}

// services.Notifier

func (h *Hub) NewMessage(msg *models.Message) {
	h.BroadcastToRoom(msg.ConversationID, wire.NewMessage, wire.NewMessagePayload{Message: msg, ConversationID: msg.ConversationID})
}

func (h *Hub) ConversationUpdated(conversationID string, lastMessage *models.Message, lastMessageAt time.Time) {
	h.BroadcastToRoom(conversationID, wire.ConversationUpdated, wire.ConversationUpdatedPayload{
		ConversationID: conversationID,
		LastMessage:    lastMessage,
		LastMessageAt:  lastMessageAt,
	})
}

func (h *Hub) MessagesRead(conversationID, readBy string, readAt time.Time) {
	h.BroadcastToRoom(conversationID, wire.MessagesRead, wire.MessagesReadPayload{
		ConversationID: conversationID,
		ReadBy:         readBy,
		ReadAt:         readAt,
	})
}

// ConversationDeleted tells the room and then empties it in the same
// critical section, so no later broadcast can reach a former member.
func (h *Hub) ConversationDeleted(conversationID string) {
	frame := mustEncode(wire.ConversationDeleted, wire.ConversationRef{ConversationID: conversationID})
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[conversationID]
	if len(room) == 0 {
		return
	}
	h.fanoutLocked(room, nil, frame)
	for c := range h.rooms[conversationID] {
		delete(c.rooms, conversationID)
	}
	delete(h.rooms, conversationID)
}

var _ services.Notifier = (*Hub)(nil)

func mustEncode(event string, payload any) []byte {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		panic(err)
	}
	return frame
}

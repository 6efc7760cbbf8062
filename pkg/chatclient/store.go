package chatclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"PitchChat/models"
	"PitchChat/pkg/wire"
)

// TypingTTL is how long a typing indicator lives without a refresh.
const TypingTTL = 3 * time.Second

// Notification is a message that arrived for a conversation the user is not
// looking at.
type Notification struct {
	ConversationID string
	Message        models.Message
}

// Store is the client-side state for one signed-in user. It is safe for
// concurrent use; socket events and UI calls may arrive from different
// goroutines.
type Store struct {
	mu  sync.Mutex
	me  string
	now func() time.Time

	active        string
	messages      []models.Message
	conversations []models.Conversation
	typing        map[string]map[string]time.Time
	online        map[string]bool
	unread        int64
	notifications []Notification
	lastError     string
}

func NewStore(me string) *Store {
	return &Store{
		me:     me,
		now:    time.Now,
		typing: make(map[string]map[string]time.Time),
		online: make(map[string]bool),
	}
}

// Me is the signed-in user id.
func (s *Store) Me() string { return s.me }

// SetConversations replaces the conversation list, ordered by last activity.
func (s *Store) SetConversations(list []models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]models.Conversation(nil), list...)
	s.sortConversationsLocked()
}

func (s *Store) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Conversation(nil), s.conversations...)
}

// SwitchTo makes conversationID active and returns the previously active id.
// The message list and every typing indicator are cleared.
func (s *Store) SwitchTo(conversationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.active
	s.active = conversationID
	if prev != conversationID {
		s.messages = nil
	}
	s.typing = make(map[string]map[string]time.Time)
	return prev
}

func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// LoadHistory merges a fetched history page into the active list, keeping
// live messages and placeholders already there.
func (s *Store) LoadHistory(conversationID string, history []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conversationID != s.active {
		return
	}
	var live []models.Message
	for _, m := range s.messages {
		if !IsTemp(m.ID) {
			live = append(live, m)
		}
	}
	s.messages = Merge(history, live, Pending(s.messages))
}

func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// AddPending appends an optimistic placeholder to the active conversation.
func (s *Store) AddPending(content string, msgType models.MessageType) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return models.Message{}, fmt.Errorf("no active conversation")
	}
	if msgType == "" {
		msgType = models.MessageText
	}
	p := models.Message{
		ID:             NewTempID(s.active),
		ConversationID: s.active,
		SenderID:       s.me,
		Content:        strings.TrimSpace(content),
		MessageType:    msgType,
		CreatedAt:      s.now(),
	}
	s.messages = AppendOptimistic(s.messages, p)
	return p, nil
}

// Handle applies one server event.
func (s *Store) Handle(env wire.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch env.Event {
	case wire.NewMessage:
		var p wire.NewMessagePayload
		if err := decode(env, &p); err != nil || p.Message == nil {
			return fmt.Errorf("new_message: %w", errOrMissing(err))
		}
		s.onNewMessage(p.ConversationID, *p.Message)
	case wire.ConversationUpdated:
		var p wire.ConversationUpdatedPayload
		if err := decode(env, &p); err != nil {
			return fmt.Errorf("conversation_updated: %w", err)
		}
		s.patchSummaryLocked(p.ConversationID, p.LastMessage, p.LastMessageAt)
	case wire.MessagesRead:
		var p wire.MessagesReadPayload
		if err := decode(env, &p); err != nil {
			return fmt.Errorf("messages_read: %w", err)
		}
		s.onMessagesRead(p)
	case wire.ConversationDeleted:
		var p wire.ConversationRef
		if err := decode(env, &p); err != nil {
			return fmt.Errorf("conversation_deleted: %w", err)
		}
		s.onDeleted(p.ConversationID)
	case wire.UserTyping, wire.UserStoppedTyping:
		var p wire.TypingPayload
		if err := decode(env, &p); err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		s.onTyping(p, env.Event == wire.UserTyping)
	case wire.UserOnline, wire.UserOffline:
		var p wire.PresencePayload
		if err := decode(env, &p); err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		if env.Event == wire.UserOnline {
			s.online[p.UserID] = true
		} else {
			delete(s.online, p.UserID)
		}
	case wire.UnreadCount:
		var p wire.UnreadCountPayload
		if err := decode(env, &p); err != nil {
			return fmt.Errorf("unread_count: %w", err)
		}
		s.unread = p.Count
	case wire.Error:
		var p wire.ErrorPayload
		if err := decode(env, &p); err != nil {
			return fmt.Errorf("error: %w", err)
		}
		s.lastError = p.Message
	case wire.ConversationJoined:
		// nothing to update; the caller loads history
	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
	return nil
}

func (s *Store) onNewMessage(conversationID string, m models.Message) {
	if conversationID == "" {
		conversationID = m.ConversationID
	}
	if conversationID == s.active {
		s.messages = ApplyIncoming(s.messages, m)
		if users := s.typing[conversationID]; users != nil {
			delete(users, m.SenderID)
		}
	} else if m.SenderID != s.me {
		s.notifications = append(s.notifications, Notification{ConversationID: conversationID, Message: m})
	}
	s.patchSummaryLocked(conversationID, &m, m.CreatedAt)
}

func (s *Store) onMessagesRead(p wire.MessagesReadPayload) {
	if p.ConversationID != s.active {
		return
	}
	readAt := p.ReadAt
	for i := range s.messages {
		m := &s.messages[i]
		if m.ReceiverID == p.ReadBy && !m.IsRead && !IsTemp(m.ID) {
			m.IsRead = true
			m.ReadAt = &readAt
		}
	}
}

func (s *Store) onDeleted(conversationID string) {
	out := s.conversations[:0]
	for _, c := range s.conversations {
		if c.ID != conversationID {
			out = append(out, c)
		}
	}
	s.conversations = out
	delete(s.typing, conversationID)
	if s.active == conversationID {
		s.active = ""
		s.messages = nil
	}
	kept := s.notifications[:0]
	for _, n := range s.notifications {
		if n.ConversationID != conversationID {
			kept = append(kept, n)
		}
	}
	s.notifications = kept
}

func (s *Store) onTyping(p wire.TypingPayload, typing bool) {
	if p.UserID == s.me || p.ConversationID != s.active {
		return
	}
	users := s.typing[p.ConversationID]
	if !typing {
		delete(users, p.UserID)
		return
	}
	if users == nil {
		users = make(map[string]time.Time)
		s.typing[p.ConversationID] = users
	}
	users[p.UserID] = s.now()
}

func (s *Store) patchSummaryLocked(conversationID string, last *models.Message, at time.Time) {
	for i := range s.conversations {
		c := &s.conversations[i]
		if c.ID != conversationID {
			continue
		}
		if at.Before(c.LastMessageAt) {
			return
		}
		if last != nil {
			m := *last
			c.LastMessage = &m
			c.LastMessageID = &m.ID
		}
		c.LastMessageAt = at
		s.sortConversationsLocked()
		return
	}
}

func (s *Store) sortConversationsLocked() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastMessageAt.After(s.conversations[j].LastMessageAt)
	})
}

// TypingUsers lists who is typing in the conversation, dropping indicators
// older than TypingTTL.
func (s *Store) TypingUsers(conversationID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.typing[conversationID]
	now := s.now()
	var out []string
	for id, at := range users {
		if now.Sub(at) > TypingTTL {
			delete(users, id)
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

func (s *Store) SetUnread(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = n
}

func (s *Store) Unread() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// DrainNotifications returns and clears pending notifications.
func (s *Store) DrainNotifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notifications
	s.notifications = nil
	return out
}

// LastError returns and clears the last error event.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lastError
	s.lastError = ""
	return e
}

var errMissingData = errors.New("missing event data")

func errOrMissing(err error) error {
	if err != nil {
		return err
	}
	return errMissingData
}

func decode(env wire.Envelope, v any) error {
	if len(env.Data) == 0 {
		return errMissingData
	}
	return json.Unmarshal(env.Data, v)
}

// ApplyMessage folds a confirmed message obtained outside the socket, such as
// a REST send response, exactly like a live new_message event.
func (s *Store) ApplyMessage(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNewMessage(m.ConversationID, m)
}

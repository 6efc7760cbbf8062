package chatclient

import (
	"context"
	"fmt"

	"PitchChat/models"
	"PitchChat/pkg/logger"
	"PitchChat/pkg/wire"

	"github.com/rs/zerolog"
)

// Session drives a Store from a socket and the REST API. Socket may be nil,
// in which case everything goes over REST and no live events arrive.
type Session struct {
	Store        *Store
	Socket       *Socket
	REST         *REST
	Sender       Sender
	HistoryLimit int

	log zerolog.Logger
}

// NewSession wires a session. Sends go over the socket and fall back to REST.
func NewSession(me string, sock *Socket, rest *REST) *Session {
	var sender Sender = RESTSender{REST: rest}
	if sock != nil {
		sender = FallbackSender{Primary: SocketSender{Socket: sock}, Fallback: sender}
	}
	return &Session{
		Store:        NewStore(me),
		Socket:       sock,
		REST:         rest,
		Sender:       sender,
		HistoryLimit: 50,
		log:          logger.For("chatclient").With().Str("user_id", me).Logger(),
	}
}

// Refresh reloads the conversation list and the total unread count.
func (s *Session) Refresh(ctx context.Context) error {
	list, err := s.REST.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	s.Store.SetConversations(list)
	n, err := s.REST.UnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("unread count: %w", err)
	}
	s.Store.SetUnread(n)
	return nil
}

// Open makes conversationID the active conversation: the previous room is
// left, the new one joined and its history loaded. A history failure leaves
// the list empty rather than showing the previous conversation.
func (s *Session) Open(ctx context.Context, conversationID string) error {
	prev := s.Store.SwitchTo(conversationID)
	if s.Socket != nil {
		if prev != "" && prev != conversationID {
			if err := s.Socket.Leave(prev); err != nil {
				s.log.Debug().Err(err).Str("conversation_id", prev).Msg("leave failed")
			}
		}
		if err := s.Socket.Join(conversationID); err != nil {
			s.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("join failed")
		}
	}
	return s.reload(ctx, conversationID)
}

func (s *Session) reload(ctx context.Context, conversationID string) error {
	page, err := s.REST.History(ctx, conversationID, 1, s.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	s.Store.LoadHistory(conversationID, page.Messages)
	return nil
}

// Send shows a placeholder at once and delivers the message. When the
// transport returns the stored message it replaces the placeholder right
// away; otherwise the socket echo does.
func (s *Session) Send(ctx context.Context, content string, msgType models.MessageType) error {
	p, err := s.Store.AddPending(content, msgType)
	if err != nil {
		return err
	}
	msg, err := s.Sender.Send(ctx, p.ConversationID, p.Content, p.MessageType)
	if err != nil {
		return err
	}
	if msg != nil {
		s.Store.ApplyMessage(*msg)
	}
	return nil
}

// Typing reports typing state for the active conversation over the socket.
func (s *Session) Typing(start bool) error {
	active := s.Store.Active()
	if s.Socket == nil || active == "" {
		return nil
	}
	event := wire.TypingStop
	if start {
		event = wire.TypingStart
	}
	return s.Socket.Emit(event, wire.ConversationRef{ConversationID: active})
}

// MarkRead marks the active conversation read over REST.
func (s *Session) MarkRead(ctx context.Context) error {
	active := s.Store.Active()
	if active == "" {
		return nil
	}
	n, err := s.REST.MarkRead(ctx, active)
	if err != nil {
		return err
	}
	s.Store.SetUnread(n)
	return nil
}

// Handle applies a socket event. A conversation_joined event for the active
// conversation reloads history, which also recovers messages missed while a
// reconnect was in progress.
func (s *Session) Handle(ctx context.Context, env wire.Envelope) {
	if err := s.Store.Handle(env); err != nil {
		s.log.Debug().Err(err).Str("event", env.Event).Msg("event ignored")
		return
	}
	if env.Event != wire.ConversationJoined {
		return
	}
	var ref wire.ConversationRef
	if decode(env, &ref) != nil || ref.ConversationID != s.Store.Active() {
		return
	}
	if err := s.reload(ctx, ref.ConversationID); err != nil {
		s.log.Warn().Err(err).Msg("history reload failed")
	}
}

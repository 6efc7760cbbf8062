package realtime

import (
	"context"
	"errors"

	"PitchChat/pkg/services"
	"PitchChat/pkg/wire"
)

// dispatch runs the handler for one inbound event. Every failure is reported
// to c alone.
func (h *Hub) dispatch(ctx context.Context, c *Client, ev Inbound) {
	switch ev := ev.(type) {
	case *JoinConversation:
		h.handleJoin(ctx, c, ev.ConversationID)
	case *LeaveConversation:
		h.LeaveRoom(c, ev.ConversationID)
	case *SendMessage:
		h.handleSend(ctx, c, ev)
	case *MarkAsRead:
		h.handleMarkAsRead(ctx, c, ev.ConversationID)
	case *TypingStart:
		h.handleTyping(c, ev.ConversationID, wire.UserTyping)
	case *TypingStop:
		h.handleTyping(c, ev.ConversationID, wire.UserStoppedTyping)
	default:
		c.sendError(errUnknownEvent.Error())
	}
}

func (h *Hub) fail(c *Client, conversationID string, err error) {
	ev := c.log.Warn()
	if !isCallerError(err) {
		ev = c.log.Error()
	}
	ev.Err(err).Str("conversation_id", conversationID).Msg("socket event failed")
	c.sendError(services.PublicMessage(err))
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, conversationID string) {
	conv, err := h.chat.Authorize(ctx, conversationID, c.UserID())
	if err != nil {
		h.fail(c, conversationID, err)
		return
	}
	h.JoinRoom(c, conv.ID)
	h.SendTo(c, wire.ConversationJoined, wire.ConversationRef{ConversationID: conv.ID})

	res, err := h.chat.MarkAsReadQuietly(ctx, conv.ID, c.UserID())
	if err != nil {
		h.fail(c, conv.ID, err)
		return
	}
	h.SendTo(c, wire.UnreadCount, wire.UnreadCountPayload{Count: res.UnreadCount})
}

func (h *Hub) handleSend(ctx context.Context, c *Client, ev *SendMessage) {
	if !h.InRoom(c, ev.ConversationID) {
		c.sendError("join the conversation before sending")
		return
	}
	_, err := h.chat.SendMessage(ctx, services.SendInput{
		ConversationID: ev.ConversationID,
		SenderID:       c.UserID(),
		Content:        ev.Content,
		MessageType:    ev.MessageType,
	})
	if err != nil {
		h.fail(c, ev.ConversationID, err)
	}
}

func (h *Hub) handleMarkAsRead(ctx context.Context, c *Client, conversationID string) {
	res, err := h.chat.MarkAsRead(ctx, conversationID, c.UserID())
	if err != nil {
		h.fail(c, conversationID, err)
		return
	}
	h.SendTo(c, wire.UnreadCount, wire.UnreadCountPayload{Count: res.UnreadCount})
}

// handleTyping relays to the other members only; typing from a connection
// that has not joined the room is ignored.
func (h *Hub) handleTyping(c *Client, conversationID, event string) {
	if !h.InRoom(c, conversationID) {
		return
	}
	h.BroadcastToRoomExcept(conversationID, c, event, wire.TypingPayload{UserID: c.UserID(), ConversationID: conversationID})
}

func isCallerError(err error) bool {
	for _, kind := range []error{services.ErrValidation, services.ErrNotFound, services.ErrForbidden, services.ErrUnauthenticated} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

package chatclient

import (
	"context"
	"errors"

	"PitchChat/models"
	"PitchChat/pkg/logger"
	"PitchChat/pkg/wire"
)

// Sender delivers a message over one transport. A transport that learns the
// persisted message right away returns it; the socket returns nil and the
// message arrives later as a new_message event.
type Sender interface {
	Send(ctx context.Context, conversationID, content string, msgType models.MessageType) (*models.Message, error)
}

// SocketSender sends through the realtime connection.
type SocketSender struct {
	Socket *Socket
}

func (s SocketSender) Send(_ context.Context, conversationID, content string, msgType models.MessageType) (*models.Message, error) {
	if s.Socket == nil {
		return nil, ErrNotConnected
	}
	return nil, s.Socket.Emit(wire.SendMessage, wire.SendMessagePayload{
		ConversationID: conversationID,
		Content:        content,
		MessageType:    msgType,
	})
}

// RESTSender sends through POST /conversations/:id/messages.
type RESTSender struct {
	REST *REST
}

func (s RESTSender) Send(ctx context.Context, conversationID, content string, msgType models.MessageType) (*models.Message, error) {
	return s.REST.Send(ctx, conversationID, content, msgType)
}

// FallbackSender tries Primary and uses Fallback when Primary could not
// hand the message to the server. Errors reported by the server itself are
// not retried.
type FallbackSender struct {
	Primary  Sender
	Fallback Sender
}

func (s FallbackSender) Send(ctx context.Context, conversationID, content string, msgType models.MessageType) (*models.Message, error) {
	msg, err := s.Primary.Send(ctx, conversationID, content, msgType)
	if err == nil || s.Fallback == nil {
		return msg, err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return nil, err
	}
	log := logger.For("chatclient")
	log.Info().Err(err).Str("conversation_id", conversationID).Msg("primary send failed, using fallback")
	return s.Fallback.Send(ctx, conversationID, content, msgType)
}

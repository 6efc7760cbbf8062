package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"PitchChat/pkg/wire"
)

var (
	errMalformedFrame = errors.New("malformed event")
	errUnknownEvent   = errors.New("unsupported event")
)

// Inbound is one decoded client event. The set is closed: only the types
// below implement it, and dispatch switches over them.
type Inbound interface {
	inbound()
}

type JoinConversation struct{ wire.ConversationRef }
type LeaveConversation struct{ wire.ConversationRef }
type SendMessage struct{ wire.SendMessagePayload }
type MarkAsRead struct{ wire.ConversationRef }
type TypingStart struct{ wire.ConversationRef }
type TypingStop struct{ wire.ConversationRef }

func (*JoinConversation) inbound()  {}
func (*LeaveConversation) inbound() {}
func (*SendMessage) inbound()       {}
func (*MarkAsRead) inbound()        {}
func (*TypingStart) inbound()       {}
func (*TypingStop) inbound()        {}

var inboundKinds = map[string]func() Inbound{
	wire.JoinConversation:  func() Inbound { return &JoinConversation{} },
	wire.LeaveConversation: func() Inbound { return &LeaveConversation{} },
	wire.SendMessage:       func() Inbound { return &SendMessage{} },
	wire.MarkAsRead:        func() Inbound { return &MarkAsRead{} },
	wire.TypingStart:       func() Inbound { return &TypingStart{} },
	wire.TypingStop:        func() Inbound { return &TypingStop{} },
}

// DecodeInbound parses an envelope frame into its event variant.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errMalformedFrame
	}
	mk, ok := inboundKinds[env.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, env.Event)
	}
	ev := mk()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, errMalformedFrame
		}
	}
	return ev, nil
}

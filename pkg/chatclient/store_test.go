package chatclient

import (
	"encoding/json"
	"testing"
	"time"

	"PitchChat/models"
	"PitchChat/pkg/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(t *testing.T, event string, data any) wire.Envelope {
	t.Helper()
	var e wire.Envelope
	frame, err := wire.Encode(event, data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(frame, &e))
	return e
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestStore(me string) (*Store, *clock) {
	c := &clock{now: t0}
	s := NewStore(me)
	s.now = c.Now
	return s, c
}

func TestNewMessageForActiveConversation(t *testing.T) {
	s, _ := newTestStore("a")
	s.SwitchTo("c1")
	_, err := s.AddPending("  hi  ", "")
	require.NoError(t, err)
	pending := s.Messages()
	require.Len(t, pending, 1)
	assert.Equal(t, "hi", pending[0].Content)
	assert.Equal(t, models.MessageText, pending[0].MessageType)

	m := msg("m1", "a", "hi", 0)
	require.NoError(t, s.Handle(env(t, wire.NewMessage, wire.NewMessagePayload{Message: &m, ConversationID: "c1"})))
	require.NoError(t, s.Handle(env(t, wire.NewMessage, wire.NewMessagePayload{Message: &m, ConversationID: "c1"})))
	assert.Equal(t, []string{"m1"}, ids(s.Messages()))
	assert.Empty(t, s.DrainNotifications())
}

func TestNewMessageElsewhereNotifies(t *testing.T) {
	s, _ := newTestStore("a")
	s.SetConversations([]models.Conversation{
		{ID: "c1", LastMessageAt: t0.Add(2 * time.Second)},
		{ID: "c2", LastMessageAt: t0.Add(time.Second)},
	})
	s.SwitchTo("c1")

	theirs := models.Message{ID: "m9", ConversationID: "c2", SenderID: "b", Content: "ping", CreatedAt: t0.Add(5 * time.Second)}
	require.NoError(t, s.Handle(env(t, wire.NewMessage, wire.NewMessagePayload{Message: &theirs, ConversationID: "c2"})))

	assert.Empty(t, s.Messages())
	notes := s.DrainNotifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "c2", notes[0].ConversationID)
	assert.Empty(t, s.DrainNotifications())

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "c2", convs[0].ID)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "ping", convs[0].LastMessage.Content)

	// own messages sent from another device do not notify
	mine := models.Message{ID: "m10", ConversationID: "c2", SenderID: "a", Content: "pong", CreatedAt: t0.Add(6 * time.Second)}
	require.NoError(t, s.Handle(env(t, wire.NewMessage, wire.NewMessagePayload{Message: &mine, ConversationID: "c2"})))
	assert.Empty(t, s.DrainNotifications())
}

func TestConversationUpdatedIgnoresOlderSummaries(t *testing.T) {
	s, _ := newTestStore("a")
	last := msg("m5", "b", "newest", 10*time.Second)
	s.SetConversations([]models.Conversation{{ID: "c1", LastMessageAt: last.CreatedAt, LastMessage: &last}})

	old := msg("m1", "b", "old", 0)
	require.NoError(t, s.Handle(env(t, wire.ConversationUpdated, wire.ConversationUpdatedPayload{ConversationID: "c1", LastMessage: &old, LastMessageAt: old.CreatedAt})))
	assert.Equal(t, "newest", s.Conversations()[0].LastMessage.Content)
}

func TestMessagesReadMarksOnlyReceivedMessages(t *testing.T) {
	s, _ := newTestStore("a")
	s.SwitchTo("c1")
	toB := msg("m1", "a", "for b", 0)
	toB.ReceiverID = "b"
	toA := msg("m2", "b", "for a", time.Second)
	toA.ReceiverID = "a"
	s.LoadHistory("c1", []models.Message{toB, toA})

	require.NoError(t, s.Handle(env(t, wire.MessagesRead, wire.MessagesReadPayload{ConversationID: "c1", ReadBy: "b", ReadAt: t0.Add(time.Minute)})))
	got := s.Messages()
	assert.True(t, got[0].IsRead)
	require.NotNil(t, got[0].ReadAt)
	assert.False(t, got[1].IsRead)
}

func TestConversationDeletedEvictsEverything(t *testing.T) {
	s, _ := newTestStore("a")
	s.SetConversations([]models.Conversation{{ID: "c1"}, {ID: "c2"}})
	s.SwitchTo("c1")
	s.LoadHistory("c1", []models.Message{msg("m1", "b", "x", 0)})
	other := models.Message{ID: "m2", ConversationID: "c2", SenderID: "b", Content: "y", CreatedAt: t0}
	require.NoError(t, s.Handle(env(t, wire.NewMessage, wire.NewMessagePayload{Message: &other, ConversationID: "c2"})))

	require.NoError(t, s.Handle(env(t, wire.ConversationDeleted, wire.ConversationRef{ConversationID: "c1"})))
	assert.Equal(t, "", s.Active())
	assert.Empty(t, s.Messages())
	require.Len(t, s.Conversations(), 1)
	assert.Equal(t, "c2", s.Conversations()[0].ID)
	assert.Len(t, s.DrainNotifications(), 1)

	require.NoError(t, s.Handle(env(t, wire.ConversationDeleted, wire.ConversationRef{ConversationID: "c2"})))
	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.DrainNotifications())
}

func TestTypingIndicators(t *testing.T) {
	s, c := newTestStore("a")
	s.SwitchTo("c1")

	require.NoError(t, s.Handle(env(t, wire.UserTyping, wire.TypingPayload{UserID: "b", ConversationID: "c1"})))
	require.NoError(t, s.Handle(env(t, wire.UserTyping, wire.TypingPayload{UserID: "a", ConversationID: "c1"})))
	require.NoError(t, s.Handle(env(t, wire.UserTyping, wire.TypingPayload{UserID: "b", ConversationID: "c2"})))
	assert.Equal(t, []string{"b"}, s.TypingUsers("c1"))
	assert.Empty(t, s.TypingUsers("c2"))

	require.NoError(t, s.Handle(env(t, wire.UserStoppedTyping, wire.TypingPayload{UserID: "b", ConversationID: "c1"})))
	assert.Empty(t, s.TypingUsers("c1"))

	require.NoError(t, s.Handle(env(t, wire.UserTyping, wire.TypingPayload{UserID: "b", ConversationID: "c1"})))
	c.now = c.now.Add(TypingTTL + time.Millisecond)
	assert.Empty(t, s.TypingUsers("c1"))

	// a message from the typist clears the indicator
	c.now = t0
	require.NoError(t, s.Handle(env(t, wire.UserTyping, wire.TypingPayload{UserID: "b", ConversationID: "c1"})))
	m := msg("m1", "b", "done", 0)
	require.NoError(t, s.Handle(env(t, wire.NewMessage, wire.NewMessagePayload{Message: &m, ConversationID: "c1"})))
	assert.Empty(t, s.TypingUsers("c1"))

	// switching conversations clears indicators
	require.NoError(t, s.Handle(env(t, wire.UserTyping, wire.TypingPayload{UserID: "b", ConversationID: "c1"})))
	s.SwitchTo("c2")
	s.SwitchTo("c1")
	assert.Empty(t, s.TypingUsers("c1"))
}

func TestPresenceUnreadAndErrors(t *testing.T) {
	s, _ := newTestStore("a")
	require.NoError(t, s.Handle(env(t, wire.UserOnline, wire.PresencePayload{UserID: "b"})))
	assert.True(t, s.IsOnline("b"))
	require.NoError(t, s.Handle(env(t, wire.UserOffline, wire.PresencePayload{UserID: "b"})))
	assert.False(t, s.IsOnline("b"))

	require.NoError(t, s.Handle(env(t, wire.UnreadCount, wire.UnreadCountPayload{Count: 4})))
	assert.Equal(t, int64(4), s.Unread())

	require.NoError(t, s.Handle(env(t, wire.Error, wire.ErrorPayload{Message: "rate limit exceeded"})))
	assert.Equal(t, "rate limit exceeded", s.LastError())
	assert.Equal(t, "", s.LastError())
}

func TestHandleRejectsBadEvents(t *testing.T) {
	s, _ := newTestStore("a")
	assert.Error(t, s.Handle(wire.Envelope{Event: "bogus"}))
	assert.ErrorIs(t, s.Handle(wire.Envelope{Event: wire.NewMessage}), errMissingData)
	assert.Error(t, s.Handle(wire.Envelope{Event: wire.UnreadCount, Data: []byte(`"x"`)}))
}

func TestLoadHistoryForInactiveConversationIsIgnored(t *testing.T) {
	s, _ := newTestStore("a")
	s.SwitchTo("c2")
	s.LoadHistory("c1", []models.Message{msg("m1", "b", "late", 0)})
	assert.Empty(t, s.Messages())
}

func TestLoadHistoryKeepsLiveAndPending(t *testing.T) {
	s, _ := newTestStore("a")
	s.SwitchTo("c1")
	live := msg("m3", "b", "live", 3*time.Second)
	require.NoError(t, s.Handle(env(t, wire.NewMessage, wire.NewMessagePayload{Message: &live, ConversationID: "c1"})))
	_, err := s.AddPending("draft", models.MessageText)
	require.NoError(t, err)

	s.LoadHistory("c1", []models.Message{msg("m1", "a", "old", 0)})
	got := s.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m3", got[1].ID)
	assert.True(t, IsTemp(got[2].ID))
}

func TestAddPendingNeedsActiveConversation(t *testing.T) {
	s, _ := newTestStore("a")
	_, err := s.AddPending("hi", "")
	assert.Error(t, err)
}

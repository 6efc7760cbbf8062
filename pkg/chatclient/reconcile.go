// Package chatclient is the client half of the chat: it merges REST history,
// live socket events and optimistic sends into one message list per
// conversation, and keeps the conversation list, typing and presence state
// that a UI renders.
package chatclient

import (
	"sort"
	"strings"
	"time"

	"PitchChat/models"

	"github.com/google/uuid"
)

const tempPrefix = "temp-"

// confirmSkew bounds how much earlier than its placeholder a server message
// may be stamped and still confirm it.
const confirmSkew = 30 * time.Second

// NewTempID returns a placeholder id scoped to the conversation.
func NewTempID(conversationID string) string {
	return tempPrefix + conversationID + "-" + uuid.NewString()
}

// IsTemp reports whether id is a placeholder id.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// AppendOptimistic adds an unconfirmed placeholder to the end of list.
func AppendOptimistic(list []models.Message, placeholder models.Message) []models.Message {
	if placeholder.ID == "" || !IsTemp(placeholder.ID) {
		placeholder.ID = NewTempID(placeholder.ConversationID)
	}
	placeholder.IsRead = false
	return append(list, placeholder)
}

// ApplyIncoming folds a live server message into the active list: every
// placeholder is stripped, then the message is appended unless its id is
// already present.
func ApplyIncoming(list []models.Message, incoming models.Message) []models.Message {
	out := make([]models.Message, 0, len(list)+1)
	for _, m := range list {
		if !IsTemp(m.ID) {
			out = append(out, m)
		}
	}
	for _, m := range out {
		if m.ID == incoming.ID {
			return out
		}
	}
	return append(out, incoming)
}

// Merge builds the list for a conversation from persisted history, live
// messages received since, and local placeholders. Confirmed messages are
// unique by id and in chronological order; a placeholder is kept at the end
// only while no confirmed message from the same sender with the same content
// could be its echo.
func Merge(history, live, pending []models.Message) []models.Message {
	byID := make(map[string]models.Message, len(history)+len(live))
	for _, m := range history {
		if !IsTemp(m.ID) {
			byID[m.ID] = m
		}
	}
	for _, m := range live {
		if !IsTemp(m.ID) {
			byID[m.ID] = m
		}
	}

	out := make([]models.Message, 0, len(byID)+len(pending))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	used := make(map[string]bool)
	for _, p := range pending {
		if !confirmed(p, out, used) {
			out = append(out, p)
		}
	}
	return out
}

// confirmed finds an unused confirmed message that echoes placeholder p.
func confirmed(p models.Message, list []models.Message, used map[string]bool) bool {
	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		if IsTemp(m.ID) || used[m.ID] {
			continue
		}
		if m.SenderID == p.SenderID && m.Content == p.Content && !m.CreatedAt.Before(p.CreatedAt.Add(-confirmSkew)) {
			used[m.ID] = true
			return true
		}
	}
	return false
}

// Pending returns the placeholders in list.
func Pending(list []models.Message) []models.Message {
	var out []models.Message
	for _, m := range list {
		if IsTemp(m.ID) {
			out = append(out, m)
		}
	}
	return out
}

package chatclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PitchChat/middleware"
	"PitchChat/models"
	"PitchChat/pkg/database"
	"PitchChat/pkg/realtime"
	"PitchChat/pkg/services"
	"PitchChat/pkg/token"
	"PitchChat/pkg/wire"
	"PitchChat/routes"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	srv      *httptest.Server
	tokens   *token.Manager
	investor models.User
	founder  models.User
	pitch    models.Pitch
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.OpenMemory()
	require.NoError(t, err)

	b := &backend{tokens: token.NewManager("test-secret", time.Hour)}
	b.investor = models.User{Name: "Ada", Email: "ada@example.com", Role: models.RoleInvestor}
	b.founder = models.User{Name: "Ben", Email: "ben@example.com", Role: models.RoleEntrepreneur}
	require.NoError(t, db.Create(&b.investor).Error)
	require.NoError(t, db.Create(&b.founder).Error)
	b.pitch = models.Pitch{EntrepreneurID: b.founder.ID, Title: "Solar kiosks", Status: models.PitchStatusPublished}
	require.NoError(t, db.Create(&b.pitch).Error)

	chat := services.NewChatService(db, nil, nil)
	hub := realtime.NewHub(chat, realtime.Options{})
	chat.SetNotifier(hub)
	limiter := middleware.NewLimiterStore(6000, 100, time.Hour)

	r := gin.New()
	routes.RegisterRoutes(r, routes.Deps{DB: db, Chat: chat, Hub: hub, Tokens: b.tokens, Limiter: limiter, CookieName: "token"})
	b.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Shutdown()
		b.srv.Close()
		limiter.Stop()
	})
	return b
}

func (b *backend) token(t *testing.T, u models.User, entitlements ...string) string {
	t.Helper()
	tok, _, err := b.tokens.Sign(token.Identity{UserID: u.ID, Role: u.Role, Entitlements: entitlements})
	require.NoError(t, err)
	return tok
}

// connect opens a socket session for u and returns a channel that receives
// the id of every joined conversation.
func (b *backend) connect(t *testing.T, ctx context.Context, u models.User, entitlements ...string) (*Session, <-chan string) {
	t.Helper()
	tok := b.token(t, u, entitlements...)
	sock, err := DialSocket(ctx, SocketConfig{URL: wsURL(b.srv, "/ws"), Token: tok})
	require.NoError(t, err)
	sess := NewSession(u.ID, sock, NewREST(b.srv.URL, tok))

	joined := make(chan string, 8)
	go func() {
		_ = sock.Run(ctx, func(e wire.Envelope) {
			sess.Handle(ctx, e)
			if e.Event == wire.ConversationJoined {
				var ref wire.ConversationRef
				if decode(e, &ref) == nil {
					joined <- ref.ConversationID
				}
			}
		})
	}()
	t.Cleanup(func() { _ = sock.Close() })
	return sess, joined
}

func waitJoined(t *testing.T, ch <-chan string, id string) {
	t.Helper()
	select {
	case got := <-ch:
		require.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("never joined %s", id)
	}
}

func TestSessionConversationFlow(t *testing.T) {
	b := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	investor, investorJoined := b.connect(t, ctx, b.investor, token.EntitlementContactEntrepreneurs)
	founder, founderJoined := b.connect(t, ctx, b.founder)

	convID, created, err := investor.REST.Initiate(ctx, b.pitch.ID, "Interested!")
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, founder.Refresh(ctx))
	require.Len(t, founder.Store.Conversations(), 1)
	n, err := founder.REST.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, founder.Open(ctx, convID))
	waitJoined(t, founderJoined, convID)
	require.NoError(t, investor.Open(ctx, convID))
	waitJoined(t, investorJoined, convID)

	history := founder.Store.Messages()
	require.Len(t, history, 1)
	assert.Equal(t, "Interested!", history[0].Content)

	require.NoError(t, investor.Send(ctx, "When can we meet?", models.MessageText))

	assert.Eventually(t, func() bool {
		got := founder.Store.Messages()
		return len(got) == 2 && got[1].Content == "When can we meet?"
	}, 5*time.Second, 20*time.Millisecond)

	// the echo replaces the sender's placeholder
	assert.Eventually(t, func() bool {
		got := investor.Store.Messages()
		return len(got) == 2 && len(Pending(got)) == 0 && got[1].Content == "When can we meet?"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, investor.Typing(true))
	assert.Eventually(t, func() bool {
		return len(founder.Store.TypingUsers(convID)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	// the founder is in the room, so the investor sees the read receipt
	require.NoError(t, founder.MarkRead(ctx))
	assert.Eventually(t, func() bool {
		got := investor.Store.Messages()
		return len(got) == 2 && got[1].IsRead
	}, 5*time.Second, 20*time.Millisecond)
	assert.Zero(t, founder.Store.Unread())

	require.NoError(t, founder.REST.Delete(ctx, convID))
	assert.Eventually(t, func() bool {
		return investor.Store.Active() == ""
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSessionRESTOnly(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	investor := NewSession(b.investor.ID, nil, NewREST(b.srv.URL, b.token(t, b.investor, token.EntitlementContactEntrepreneurs)))
	convID, _, err := investor.REST.Initiate(ctx, b.pitch.ID, "Hello")
	require.NoError(t, err)

	require.NoError(t, investor.Open(ctx, convID))
	require.NoError(t, investor.Send(ctx, "Second", ""))
	got := investor.Store.Messages()
	require.Len(t, got, 2)
	assert.Empty(t, Pending(got))
	assert.Equal(t, "Second", got[1].Content)
	assert.NoError(t, investor.Typing(true))
}

func TestRESTErrors(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	anon := NewREST(b.srv.URL, "")
	_, err := anon.Conversations(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	founder := NewREST(b.srv.URL, b.token(t, b.founder))
	_, err = founder.Send(ctx, "00000000-0000-0000-0000-000000000000", "hi", "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	// initiating needs the entitlement
	_, _, err = NewREST(b.srv.URL, b.token(t, b.investor)).Initiate(ctx, b.pitch.ID, "hi")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestOpenWithFailingHistoryShowsNothing(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	s := NewSession(b.founder.ID, nil, NewREST(b.srv.URL, b.token(t, b.founder)))
	s.Store.SwitchTo("c-old")
	s.Store.LoadHistory("c-old", []models.Message{{ID: "m1", Content: "old"}})

	err := s.Open(ctx, "00000000-0000-0000-0000-000000000000")
	assert.Error(t, err)
	assert.Empty(t, s.Store.Messages())
}

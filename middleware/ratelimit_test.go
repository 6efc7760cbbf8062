package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PitchChat/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestLimiterStoreAllowsBurstPerKey(t *testing.T) {
	s := NewLimiterStore(1, 2, time.Hour)
	defer s.Stop()

	assert.True(t, s.Allow("a"))
	assert.True(t, s.Allow("a"))
	assert.False(t, s.Allow("a"))
	assert.True(t, s.Allow("b"), "keys have separate budgets")
	assert.Equal(t, 60, s.retryAfter())
}

func TestRateLimitMiddleware(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Hour)
	defer s.Stop()

	r := gin.New()
	r.GET("/x", func(c *gin.Context) { c.Set(ContextUserIDKey, "u1") }, RateLimit(s), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"success":false,"message":"too many requests"}`, w.Body.String())
}

func authEngine(m *token.Manager) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(m, "token"), func(c *gin.Context) {
		id, _ := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"id": id.UserID, "role": id.Role})
	})
	r.POST("/initiate", AuthMiddleware(m, "token"), RequireEntitlement(token.EntitlementContactEntrepreneurs), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	m := token.NewManager("test-secret", time.Minute)
	r := authEngine(m)
	tok, _, err := m.Sign(token.Identity{UserID: "u1", Role: "investor"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"missing authorization header"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","role":"investor"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: tok})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireEntitlement(t *testing.T) {
	m := token.NewManager("test-secret", time.Minute)
	r := authEngine(m)

	plain, _, err := m.Sign(token.Identity{UserID: "u1", Role: "investor"})
	require.NoError(t, err)
	paid, _, err := m.Sign(token.Identity{UserID: "u1", Role: "investor", Entitlements: []string{token.EntitlementContactEntrepreneurs}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/initiate", nil)
	req.Header.Set("Authorization", "Bearer "+plain)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/initiate", nil)
	req.Header.Set("Authorization", "Bearer "+paid)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

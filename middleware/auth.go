package middleware

import (
	"errors"
	"net/http"

	"PitchChat/pkg/token"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey   = "current_user_id"
	ContextIdentityKey = "current_identity"
)

// Verifier checks a bearer credential.
type Verifier interface {
	Verify(tokenStr string) (token.Identity, error)
}

// AuthMiddleware resolves the caller from the Authorization header or, when
// absent, the auth cookie.
func AuthMiddleware(v Verifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := token.FromHeader(c.GetHeader("Authorization"))
		if tokenStr == "" && cookieName != "" {
			tokenStr, _ = c.Cookie(cookieName)
		}

		id, err := v.Verify(tokenStr)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, token.ErrMissingCredential) {
				msg = "missing authorization header"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg})
			return
		}

		c.Set(ContextUserIDKey, id.UserID)
		c.Set(ContextIdentityKey, id)
		c.Next()
	}
}

// CurrentIdentity returns the identity set by AuthMiddleware.
func CurrentIdentity(c *gin.Context) (token.Identity, bool) {
	v, ok := c.Get(ContextIdentityKey)
	if !ok {
		return token.Identity{}, false
	}
	id, ok := v.(token.Identity)
	return id, ok
}

// RequireEntitlement rejects callers whose credential lacks entitlement.
func RequireEntitlement(entitlement string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok || !id.Has(entitlement) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "your plan does not allow this action"})
			return
		}
		c.Next()
	}
}

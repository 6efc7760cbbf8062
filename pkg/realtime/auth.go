package realtime

import (
	"net/http"
	"strings"

	"PitchChat/pkg/token"
)

// Verifier checks a credential and returns the caller identity.
type Verifier interface {
	Verify(tokenStr string) (token.Identity, error)
}

// ExtractCredential looks for the credential in the connection-time auth
// payload first (the token query parameter, then an Authorization header) and
// falls back to the auth cookie.
func ExtractCredential(r *http.Request, cookieName string) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	if t := token.FromHeader(r.Header.Get("Authorization")); t != "" {
		return t
	}
	if cookieName != "" {
		if ck, err := r.Cookie(cookieName); err == nil {
			return strings.TrimSpace(ck.Value)
		}
	}
	return ""
}

// Authenticate resolves the identity of a connection attempt. The error is
// token.ErrMissingCredential or wraps token.ErrInvalidCredential.
func Authenticate(r *http.Request, cookieName string, v Verifier) (token.Identity, error) {
	cred := ExtractCredential(r, cookieName)
	if cred == "" {
		return token.Identity{}, token.ErrMissingCredential
	}
	return v.Verify(cred)
}

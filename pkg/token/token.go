// Package token verifies the bearer credentials issued by the account service.
package token

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingCredential = errors.New("authentication required")
	ErrInvalidCredential = errors.New("invalid or expired credential")
)

// EntitlementContactEntrepreneurs gates conversation initiation.
const EntitlementContactEntrepreneurs = "contact_entrepreneurs"

// Claims is the credential payload. Subject carries the user id.
type Claims struct {
	Role         string   `json:"role"`
	Entitlements []string `json:"entitlements,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what the rest of the system knows about an authenticated caller.
type Identity struct {
	UserID       string
	Role         string
	Entitlements []string
}

func (i Identity) Has(entitlement string) bool {
	return slices.Contains(i.Entitlements, entitlement)
}

// Manager signs and verifies HMAC tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Verify checks signature and expiry and returns the caller identity.
func (m *Manager) Verify(tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, ErrMissingCredential
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		// only accept HMAC signing
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.secret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}
	return Identity{UserID: claims.Subject, Role: claims.Role, Entitlements: claims.Entitlements}, nil
}

// Sign issues a token for id. The account service owns issuance in
// production; this is used by tooling and tests.
func (m *Manager) Sign(id Identity) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.ttl)
	claims := Claims{
		Role:         id.Role,
		Entitlements: id.Entitlements,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// FromHeader returns the token of an "Authorization: Bearer <token>" value,
// or "" when the value is not a bearer credential.
func FromHeader(auth string) string {
	parts := strings.Fields(auth)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

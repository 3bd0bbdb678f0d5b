package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is the absolute lifetime of a bearer token. Independent of the
// 30-minute idle timeout: an active session still dies when its token does.
const tokenTTL = 24 * time.Hour

// sessionClaims is the JWT payload binding a token to one session.
type sessionClaims struct {
	SessionID   string `json:"sessionId"`
	WorkspaceID string `json:"workspaceId"`
	Fingerprint string `json:"fingerprint"`
	jwt.RegisteredClaims
}

// tokenIssuer signs and verifies session bearer tokens with HMAC-SHA256.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func newTokenIssuer(secret []byte, ttl time.Duration) *tokenIssuer {
	if ttl <= 0 {
		ttl = tokenTTL
	}
	return &tokenIssuer{secret: secret, ttl: ttl}
}

// issue signs a token for the session. Returns the compact token and its
// absolute expiry.
func (ti *tokenIssuer) issue(sessionID, workspaceID, fingerprint string) (string, time.Time, error) {
	expiresAt := time.Now().Add(ti.ttl)
	claims := sessionClaims{
		SessionID:   sessionID,
		WorkspaceID: workspaceID,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// verify parses and validates a token, rejecting any signing method other
// than the expected HMAC.
func (ti *tokenIssuer) verify(tokenString string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

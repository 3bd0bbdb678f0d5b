package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/internal/util"
)

type contextKey int

const sessionContextKey contextKey = iota

// requireSession authenticates the bearer token, loads the session and
// enforces the idle window. The token's absolute expiry and the session's
// sliding idle timeout are independent checks; either alone ends access.
func (a *API) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, errUnauthorized, "missing bearer token")
			return
		}

		claims, err := a.tokens.verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, errSessionExpired, "token invalid or expired")
			return
		}

		session, err := a.sessions.get(claims.SessionID)
		if err != nil {
			switch {
			case errors.Is(err, errSessionIdle):
				writeError(w, http.StatusUnauthorized, errSessionExpired, "session expired")
			case errors.Is(err, errSessionMissing):
				writeError(w, http.StatusUnauthorized, errSessionNotFound, "session not found")
			default:
				mapError(w, err)
			}
			return
		}

		// The fingerprint binds the token to the session that issued it.
		if subtle.ConstantTimeCompare([]byte(session.Fingerprint), []byte(claims.Fingerprint)) != 1 {
			writeError(w, http.StatusUnauthorized, errUnauthorized, "token does not match session")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUnlocked refuses requests whose session vault holds no key.
// Mounted after requireSession on every route that touches encrypted data.
func (a *API) requireUnlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())
		if session == nil || !a.sessions.vaultFor(session.SessionID).Unlocked() {
			writeError(w, http.StatusLocked, errWorkspaceLocked, "workspace is locked")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey).(*Session)
	return session
}

// sessionFingerprint derives a stable opaque identifier from request origin
// attributes and the login instant. It ties a token to the context that
// created it without storing the raw user agent in the token.
func sessionFingerprint(r *http.Request, issuedAt time.Time) string {
	sum := sha256.Sum256([]byte(r.UserAgent() + "|" + extractClientIP(r) + "|" + issuedAt.UTC().Format(time.RFC3339Nano)))
	return util.HexEncode(sum[:])
}

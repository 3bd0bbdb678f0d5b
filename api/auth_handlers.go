package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Thalikbussacro/acesso-clientes/vault"
)

// Status reports setup state and, for an authenticated caller, whether
// their session vault is unlocked. Unauthenticated callers get the setup
// state only; a status probe must never require a token.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{}
	ws, err := vault.New(a.repo).Workspace(r.Context())
	switch {
	case err == nil:
		resp.WorkspaceExists = true
		resp.WorkspaceName = ws.Name
	case errors.Is(err, vault.ErrWorkspaceNotFound):
	default:
		mapError(w, err)
		return
	}

	if session := a.optionalSession(r); session != nil {
		resp.Unlocked = a.sessions.vaultFor(session.SessionID).Unlocked()
	}
	writeJSON(w, http.StatusOK, resp)
}

// SessionInfo reports the caller's session state: unlocked flag and
// activity timestamps. The unlocked flag reflects the live vault handle,
// not stale persisted metadata.
func (a *API) SessionInfo(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, SessionResponse{
		WorkspaceID:  session.WorkspaceID,
		Unlocked:     session.Unlocked,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
	})
}

// Setup creates the workspace and opens a first session. The returned
// token authenticates the caller, but the vault stays locked until an
// explicit unlock.
func (a *API) Setup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errMissingFields, "invalid request body")
		return
	}
	if req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "name and password are required")
		return
	}

	v := vault.New(a.repo)
	ws, err := v.CreateWorkspace(r.Context(), req.Name, req.Password)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log("workspace_created", r, slog.String("workspace", ws.Name))
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: ws.ID,
		Action:      vault.AuditWorkspaceCreated,
		EntityType:  vault.EntityWorkspace,
		EntityID:    ws.ID,
	})

	token, expiresAt, err := a.openSession(r, ws)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, LoginResponse{Token: token, ExpiresAt: expiresAt, Workspace: ws.Name})
}

// Login verifies the workspace password and issues a bearer token. Login
// alone never unlocks: the master key is only derived by Unlock.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	ip := extractClientIP(r)
	if blocked, retryAfter := a.rateLimiter.check(ip); blocked {
		a.audit.logFailure("login_rate_limited", r, "rate limited")
		writeRateLimited(w, retryAfter)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "password is required")
		return
	}

	v := vault.New(a.repo)
	if err := v.VerifyPassword(r.Context(), req.Password); err != nil {
		if errors.Is(err, vault.ErrInvalidPassword) {
			a.rateLimiter.recordFailure(ip)
			a.audit.logFailure("login_failure", r, "invalid password")
			a.recordAudit(r.Context(), r, v, vault.AuditEvent{
				Action:     vault.AuditLoginFailed,
				EntityType: vault.EntitySession,
			})
		}
		mapError(w, err)
		return
	}
	a.rateLimiter.recordSuccess(ip)

	ws, err := v.Workspace(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	token, expiresAt, err := a.openSession(r, ws)
	if err != nil {
		mapError(w, err)
		return
	}
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: ws.ID,
		Action:      vault.AuditLogin,
		EntityType:  vault.EntitySession,
	})
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt, Workspace: ws.Name})
}

// Unlock derives and installs the master key for the caller's session.
func (a *API) Unlock(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	ip := extractClientIP(r)
	if blocked, retryAfter := a.rateLimiter.check(ip); blocked {
		writeRateLimited(w, retryAfter)
		return
	}

	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "password is required")
		return
	}

	v := a.sessions.vaultFor(session.SessionID)
	if err := v.Unlock(r.Context(), req.Password); err != nil {
		if errors.Is(err, vault.ErrInvalidPassword) {
			a.rateLimiter.recordFailure(ip)
			a.audit.logSession("unlock_failure", r, session.SessionID)
			a.recordAudit(r.Context(), r, v, vault.AuditEvent{
				WorkspaceID: session.WorkspaceID,
				Action:      vault.AuditUnlockFailed,
				EntityType:  vault.EntitySession,
			})
		}
		mapError(w, err)
		return
	}
	a.rateLimiter.recordSuccess(ip)
	if err := a.sessions.markUnlocked(session, true); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logSession("unlock", r, session.SessionID)
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		Action:      vault.AuditUnlock,
		EntityType:  vault.EntitySession,
	})
	writeJSON(w, http.StatusOK, StatusResponse{WorkspaceExists: true, Unlocked: true})
}

// Lock wipes the session's master key. Idempotent.
func (a *API) Lock(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	v.Lock()
	a.gate.RevokeSession(session.SessionID)
	if err := a.sessions.markUnlocked(session, false); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logSession("lock", r, session.SessionID)
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		Action:      vault.AuditLock,
		EntityType:  vault.EntitySession,
	})
	writeJSON(w, http.StatusOK, StatusResponse{WorkspaceExists: true, Unlocked: false})
}

// Logout destroys the session, which also wipes its vault handle.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		Action:      vault.AuditLogout,
		EntityType:  vault.EntitySession,
	})
	a.gate.RevokeSession(session.SessionID)
	a.sessions.drop(session.SessionID)
	a.audit.logSession("logout", r, session.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword rotates the workspace password, re-encrypting all stored
// data atomically. The session's vault ends up holding the new key.
func (a *API) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "current and new passwords are required")
		return
	}

	v := a.sessions.vaultFor(session.SessionID)
	if err := v.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		mapError(w, err)
		return
	}
	// Every other session still holds the retired key; force them back to
	// locked so they re-unlock with the new password instead of failing
	// integrity checks on freshly re-encrypted records.
	a.sessions.lockAllExcept(session.SessionID)
	if err := a.sessions.markUnlocked(session, true); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logSession("password_changed", r, session.SessionID)
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		Action:      vault.AuditPasswordChanged,
		EntityType:  vault.EntityWorkspace,
	})
	writeJSON(w, http.StatusOK, StatusResponse{WorkspaceExists: true, Unlocked: true})
}

// ValidateAccess is the per-resource re-authentication gate. A successful
// validation grants this session a short absolute window on one client.
func (a *API) ValidateAccess(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	clientID := chi.URLParam(r, "clientID")
	ip := extractClientIP(r)
	if blocked, retryAfter := a.rateLimiter.check(ip); blocked {
		writeRateLimited(w, retryAfter)
		return
	}

	var req ValidateAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "password is required")
		return
	}

	v := a.sessions.vaultFor(session.SessionID)
	if err := a.gate.Validate(r.Context(), session.SessionID, clientID, req.Password); err != nil {
		if errors.Is(err, vault.ErrInvalidPassword) {
			a.rateLimiter.recordFailure(ip)
			a.recordAudit(r.Context(), r, v, vault.AuditEvent{
				WorkspaceID: session.WorkspaceID,
				ClientID:    clientID,
				Action:      vault.AuditAccessDenied,
				EntityType:  vault.EntityClient,
				EntityID:    clientID,
			})
		}
		mapError(w, err)
		return
	}
	a.rateLimiter.recordSuccess(ip)
	a.audit.logSession("access_validated", r, session.SessionID, slog.String("client_id", clientID))
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		ClientID:    clientID,
		Action:      vault.AuditAccessValidated,
		EntityType:  vault.EntityClient,
		EntityID:    clientID,
	})
	writeJSON(w, http.StatusOK, ValidateAccessResponse{
		Granted:   true,
		ExpiresAt: time.Now().Add(a.grantTTL).UTC(),
	})
}

// openSession creates the session and signs its bearer token.
func (a *API) openSession(r *http.Request, ws *vault.Workspace) (string, time.Time, error) {
	fingerprint := sessionFingerprint(r, time.Now())
	session, err := a.sessions.create(ws.ID, fingerprint)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := a.tokens.issue(session.SessionID, session.WorkspaceID, session.Fingerprint)
	if err != nil {
		a.sessions.drop(session.SessionID)
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// optionalSession resolves a session from a bearer token if one is present
// and valid, without writing an error response.
func (a *API) optionalSession(r *http.Request) *Session {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil
	}
	claims, err := a.tokens.verify(token)
	if err != nil {
		return nil
	}
	session, err := a.sessions.get(claims.SessionID)
	if err != nil {
		return nil
	}
	return session
}

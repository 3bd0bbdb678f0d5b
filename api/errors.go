package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Thalikbussacro/acesso-clientes/storage"
	"github.com/Thalikbussacro/acesso-clientes/vault"
)

// Machine-readable error kinds returned in the "error" field. Clients
// branch on these, never on message text.
const (
	errMissingFields     = "MISSING_FIELDS"
	errWorkspaceExists   = "WORKSPACE_EXISTS"
	errWorkspaceNotFound = "WORKSPACE_NOT_FOUND"
	errWeakPassword      = "WEAK_PASSWORD"
	errInvalidPassword   = "INVALID_PASSWORD"
	errWorkspaceLocked   = "WORKSPACE_LOCKED"
	errSessionExpired    = "SESSION_EXPIRED"
	errSessionNotFound   = "SESSION_NOT_FOUND"
	errUnauthorized      = "UNAUTHORIZED"
	errNotFound          = "NOT_FOUND"
	errCorruptData       = "CORRUPT_DATA"
	errAccessDenied      = "ACCESS_DENIED"
	errRateLimited       = "RATE_LIMITED"
	errInternal          = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: msg})
}

// mapError translates vault and storage sentinels into HTTP statuses and
// error kinds. 423 Locked marks the vault-locked state so clients can
// prompt for an unlock instead of a generic failure.
func mapError(w http.ResponseWriter, err error) {
	var weak *vault.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		writeJSON(w, http.StatusBadRequest, WeakPasswordResponse{
			Error:       errWeakPassword,
			Message:     "password does not meet strength requirements",
			Score:       weak.Result.Score,
			Suggestions: weak.Result.Suggestions,
		})
	case errors.Is(err, vault.ErrVaultLocked):
		writeError(w, http.StatusLocked, errWorkspaceLocked, "workspace is locked")
	case errors.Is(err, vault.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, errInvalidPassword, "invalid password")
	case errors.Is(err, vault.ErrWorkspaceExists):
		writeError(w, http.StatusConflict, errWorkspaceExists, "workspace already exists")
	case errors.Is(err, vault.ErrWorkspaceNotFound):
		writeError(w, http.StatusNotFound, errWorkspaceNotFound, "workspace not found")
	case errors.Is(err, vault.ErrAccessDenied):
		writeError(w, http.StatusForbidden, errAccessDenied, "resource access denied")
	case errors.Is(err, vault.ErrCorruptField):
		writeError(w, http.StatusInternalServerError, errCorruptData, "stored data failed integrity check")
	case errors.Is(err, vault.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, errNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, errInternal, "internal error")
	}
}

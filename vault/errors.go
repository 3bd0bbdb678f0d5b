package vault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVaultLocked indicates an operation needed the master key while the
	// vault is locked. Deliberately distinct from crypto failures so callers
	// can prompt for an unlock instead of reporting corruption.
	ErrVaultLocked = errors.New("vault is locked")
	// ErrInvalidPassword indicates password verification or key validation
	// failed. Callers never learn which of the two checks rejected.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrWorkspaceExists indicates a workspace is already configured.
	// Exactly one workspace may exist per deployment.
	ErrWorkspaceExists = errors.New("workspace already exists")
	// ErrWorkspaceNotFound indicates no workspace has been set up yet.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrCorruptField indicates an encrypted field failed authentication or
	// deserialization: the data is corrupt or was sealed under another key.
	ErrCorruptField = errors.New("corrupt field or key mismatch")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied indicates a resource access grant is missing or expired.
	ErrAccessDenied = errors.New("resource access denied")
)

// WeakPasswordError reports a password that failed strength validation,
// carrying the concrete suggestions for the caller.
type WeakPasswordError struct {
	Result StrengthResult
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password too weak: %s", strings.Join(e.Result.Suggestions, ", "))
}

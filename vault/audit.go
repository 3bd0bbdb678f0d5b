package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/internal/uuid"
	"github.com/Thalikbussacro/acesso-clientes/storage"
)

// Audit actions recorded by the vault.
const (
	AuditWorkspaceCreated = "WORKSPACE_CREATED"
	AuditLogin            = "LOGIN"
	AuditLoginFailed      = "LOGIN_FAILED"
	AuditUnlock           = "UNLOCK"
	AuditUnlockFailed     = "UNLOCK_FAILED"
	AuditLock             = "LOCK"
	AuditLogout           = "LOGOUT"
	AuditPasswordChanged  = "PASSWORD_CHANGED"
	AuditClientCreated    = "CLIENT_CREATED"
	AuditClientUpdated    = "CLIENT_UPDATED"
	AuditClientDeleted    = "CLIENT_DELETED"
	AuditClientViewed     = "CLIENT_VIEWED"
	AuditMethodCreated    = "METHOD_CREATED"
	AuditMethodUpdated    = "METHOD_UPDATED"
	AuditMethodDeleted    = "METHOD_DELETED"
	AuditMethodRevealed   = "METHOD_REVEALED"
	AuditAccessValidated  = "ACCESS_VALIDATED"
	AuditAccessDenied     = "ACCESS_DENIED"
)

// Entity types referenced by audit entries.
const (
	EntityWorkspace = "workspace"
	EntityClient    = "client"
	EntityMethod    = "method"
	EntitySession   = "session"
)

// AuditEntry is a persisted audit record. Operational metadata (action,
// entity, timestamp, request origin) is plaintext so entries can be listed
// while locked; anything content-bearing goes into the sealed Details
// envelope.
type AuditEntry struct {
	ID            string          `json:"id"`
	WorkspaceID   string          `json:"workspaceId"`
	ClientID      string          `json:"clientId,omitempty"`
	Action        string          `json:"action"`
	EntityType    string          `json:"entityType"`
	EntityID      string          `json:"entityId,omitempty"`
	Details       *EncryptedField `json:"details,omitempty"`
	PublicDetails map[string]any  `json:"publicDetails,omitempty"`
	UserAgent     string          `json:"userAgent,omitempty"`
	IPAddress     string          `json:"ipAddress,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// AuditEvent is the input for recording an audit entry.
type AuditEvent struct {
	WorkspaceID   string
	ClientID      string
	Action        string
	EntityType    string
	EntityID      string
	Details       map[string]any
	PublicDetails map[string]any
	UserAgent     string
	IPAddress     string
}

// ListAuditOptions filters and limits audit listing. Zero Limit means all.
type ListAuditOptions struct {
	ClientID string
	Action   string
	Limit    int
}

// RecordAudit persists an audit entry. Details are sealed when the vault is
// unlocked; with a locked vault they are silently dropped rather than stored
// in plaintext. Audit writes never carry key material out.
func (v *Vault) RecordAudit(ctx context.Context, event AuditEvent) (*AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if event.Action == "" || event.EntityType == "" {
		return nil, fmt.Errorf("audit action and entity type are required")
	}

	entry := &AuditEntry{
		ID:            uuid.New(),
		WorkspaceID:   event.WorkspaceID,
		ClientID:      event.ClientID,
		Action:        event.Action,
		EntityType:    event.EntityType,
		EntityID:      event.EntityID,
		PublicDetails: event.PublicDetails,
		UserAgent:     event.UserAgent,
		IPAddress:     event.IPAddress,
		Timestamp:     time.Now().UTC(),
	}
	if len(event.Details) > 0 && v.Unlocked() {
		details, err := v.SealJSON(event.Details)
		if err != nil {
			return nil, fmt.Errorf("sealing audit details: %w", err)
		}
		entry.Details = details
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding audit entry: %w", err)
	}
	if err := v.repo.Put(storage.RecordTypeAudit, entry.ID, data); err != nil {
		return nil, fmt.Errorf("persisting audit entry: %w", err)
	}
	return entry, nil
}

// ListAudit returns audit entries newest first, optionally filtered by
// client and action. Encrypted details stay sealed.
func (v *Vault) ListAudit(ctx context.Context, opts ListAuditOptions) ([]*AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := v.repo.List(storage.RecordTypeAudit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}

	var entries []*AuditEntry
	for _, id := range ids {
		data, err := v.repo.Get(storage.RecordTypeAudit, id)
		if err != nil {
			return nil, err
		}
		var entry AuditEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("decoding audit entry %s: %w", id, err)
		}
		if opts.ClientID != "" && entry.ClientID != opts.ClientID {
			continue
		}
		if opts.Action != "" && entry.Action != opts.Action {
			continue
		}
		entries = append(entries, &entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// OpenAuditDetails decrypts an entry's sealed details for review.
func (v *Vault) OpenAuditDetails(ctx context.Context, entry *AuditEntry) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if entry.Details == nil {
		return nil, nil
	}
	var details map[string]any
	if err := v.OpenJSON(entry.Details, &details); err != nil {
		return nil, fmt.Errorf("audit entry %s details: %w", entry.ID, err)
	}
	return details, nil
}

package api

import (
	"time"

	"github.com/Thalikbussacro/acesso-clientes/vault"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WeakPasswordResponse extends the error body with strength feedback.
type WeakPasswordResponse struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	Score       int      `json:"score"`
	Suggestions []string `json:"suggestions"`
}

// StatusResponse reports whether setup has run and whether the caller's
// session holds an unlocked vault.
type StatusResponse struct {
	WorkspaceExists bool   `json:"workspaceExists"`
	WorkspaceName   string `json:"workspaceName,omitempty"`
	Unlocked        bool   `json:"unlocked"`
}

// SessionResponse describes the caller's own session.
type SessionResponse struct {
	WorkspaceID  string    `json:"workspaceId"`
	Unlocked     bool      `json:"unlocked"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// SetupRequest creates the workspace.
type SetupRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest authenticates against the workspace password.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries the bearer token for subsequent requests. The
// workspace stays locked until an explicit unlock.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Workspace string    `json:"workspace"`
}

// UnlockRequest re-presents the password to derive the master key.
type UnlockRequest struct {
	Password string `json:"password"`
}

// ChangePasswordRequest rotates the workspace password and master key.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ValidateAccessRequest is the per-resource re-authentication payload.
type ValidateAccessRequest struct {
	Password string `json:"password"`
}

// ValidateAccessResponse reports the grant window.
type ValidateAccessResponse struct {
	Granted   bool      `json:"granted"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ClientRequest creates or updates a client record.
type ClientRequest struct {
	Name   string   `json:"name"`
	Notes  string   `json:"notes"`
	Images []string `json:"images"`
}

// ClientResponse is a client with decrypted content.
type ClientResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Notes     string    `json:"notes,omitempty"`
	Images    []string  `json:"images,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClientListResponse is a page of client summaries.
type ClientListResponse struct {
	Clients []vault.ClientSummary `json:"clients"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"perPage"`
}

// MethodRequest creates or updates an access method.
type MethodRequest struct {
	MethodType string            `json:"methodType"`
	MethodName string            `json:"methodName"`
	Fields     map[string]string `json:"fields"`
}

// MethodResponse is an access method without its secret field values.
type MethodResponse struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"clientId"`
	MethodType string    `json:"methodType"`
	MethodName string    `json:"methodName"`
	HasFields  bool      `json:"hasFields"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RevealResponse carries decrypted method field values, gated behind a
// resource access grant.
type RevealResponse struct {
	Fields map[string]string `json:"fields"`
}

// MethodTypeRequest defines or replaces a method type's form schema.
type MethodTypeRequest struct {
	MethodType string                  `json:"methodType"`
	Fields     []vault.FieldDefinition `json:"fields"`
}

// AuditListResponse is a page of audit entries, details still sealed.
type AuditListResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
}

// AuditEntryResponse is the public view of an audit entry.
type AuditEntryResponse struct {
	ID            string         `json:"id"`
	ClientID      string         `json:"clientId,omitempty"`
	Action        string         `json:"action"`
	EntityType    string         `json:"entityType"`
	EntityID      string         `json:"entityId,omitempty"`
	PublicDetails map[string]any `json:"publicDetails,omitempty"`
	HasDetails    bool           `json:"hasDetails"`
	IPAddress     string         `json:"ipAddress,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

func methodResponse(m *vault.AccessMethod) MethodResponse {
	return MethodResponse{
		ID:         m.ID,
		ClientID:   m.ClientID,
		MethodType: m.MethodType,
		MethodName: m.MethodName,
		HasFields:  m.Fields != nil,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func auditEntryResponse(e *vault.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:            e.ID,
		ClientID:      e.ClientID,
		Action:        e.Action,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		PublicDetails: e.PublicDetails,
		HasDetails:    e.Details != nil,
		IPAddress:     e.IPAddress,
		Timestamp:     e.Timestamp,
	}
}

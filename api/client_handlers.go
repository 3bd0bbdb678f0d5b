package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Thalikbussacro/acesso-clientes/vault"
)

const defaultPerPage = 50

// ListClients returns a name-sorted page of client summaries, optionally
// filtered by ?search= against names and note tokens.
func (a *API) ListClients(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	if perPage < 1 {
		perPage = defaultPerPage
	}

	opts := vault.ListClientsOptions{
		Search:  r.URL.Query().Get("search"),
		Page:    page,
		PerPage: perPage,
	}
	summaries, total, err := v.ListClients(r.Context(), opts)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClientListResponse{
		Clients: summaries,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

// CreateClient stores a new client with sealed notes and images.
func (a *API) CreateClient(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)

	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "client name is required")
		return
	}

	client, err := v.CreateClient(r.Context(), session.WorkspaceID, vault.ClientInput{
		Name:   req.Name,
		Notes:  req.Notes,
		Images: req.Images,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		ClientID:    client.ID,
		Action:      vault.AuditClientCreated,
		EntityType:  vault.EntityClient,
		EntityID:    client.ID,
		Details:     map[string]any{"name": client.Name},
	})
	writeJSON(w, http.StatusCreated, ClientResponse{
		ID:        client.ID,
		Name:      client.Name,
		Notes:     req.Notes,
		Images:    req.Images,
		CreatedAt: client.CreatedAt,
		UpdatedAt: client.UpdatedAt,
	})
}

// GetClient returns a client with decrypted notes and images.
func (a *API) GetClient(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	clientID := chi.URLParam(r, "clientID")

	details, err := v.ClientDetails(r.Context(), clientID)
	if err != nil {
		mapError(w, err)
		return
	}
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		ClientID:    clientID,
		Action:      vault.AuditClientViewed,
		EntityType:  vault.EntityClient,
		EntityID:    clientID,
	})
	writeJSON(w, http.StatusOK, ClientResponse{
		ID:        details.Client.ID,
		Name:      details.Client.Name,
		Notes:     details.Notes,
		Images:    details.Images,
		CreatedAt: details.Client.CreatedAt,
		UpdatedAt: details.Client.UpdatedAt,
	})
}

// UpdateClient replaces a client's content; ciphertexts and search index
// are rewritten together.
func (a *API) UpdateClient(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	clientID := chi.URLParam(r, "clientID")

	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "client name is required")
		return
	}

	client, err := v.UpdateClient(r.Context(), clientID, vault.ClientInput{
		Name:   req.Name,
		Notes:  req.Notes,
		Images: req.Images,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		ClientID:    clientID,
		Action:      vault.AuditClientUpdated,
		EntityType:  vault.EntityClient,
		EntityID:    clientID,
		Details:     map[string]any{"name": client.Name},
	})
	writeJSON(w, http.StatusOK, ClientResponse{
		ID:        client.ID,
		Name:      client.Name,
		Notes:     req.Notes,
		Images:    req.Images,
		CreatedAt: client.CreatedAt,
		UpdatedAt: client.UpdatedAt,
	})
}

// DeleteClient removes a client and its access methods.
func (a *API) DeleteClient(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	clientID := chi.URLParam(r, "clientID")

	if err := v.DeleteClient(r.Context(), clientID); err != nil {
		mapError(w, err)
		return
	}
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		ClientID:    clientID,
		Action:      vault.AuditClientDeleted,
		EntityType:  vault.EntityClient,
		EntityID:    clientID,
	})
	w.WriteHeader(http.StatusNoContent)
}

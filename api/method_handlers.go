package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Thalikbussacro/acesso-clientes/vault"
)

// ListMethods returns a client's access methods, field values still sealed.
func (a *API) ListMethods(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	clientID := chi.URLParam(r, "clientID")

	methods, err := v.ListMethods(r.Context(), clientID)
	if err != nil {
		mapError(w, err)
		return
	}
	out := make([]MethodResponse, 0, len(methods))
	for _, m := range methods {
		out = append(out, methodResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateMethod adds an access method under a client.
func (a *API) CreateMethod(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	clientID := chi.URLParam(r, "clientID")

	var req MethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MethodType == "" || req.MethodName == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "method type and name are required")
		return
	}

	method, err := v.CreateMethod(r.Context(), clientID, vault.AccessMethodInput{
		MethodType: req.MethodType,
		MethodName: req.MethodName,
		Fields:     req.Fields,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		ClientID:    clientID,
		Action:      vault.AuditMethodCreated,
		EntityType:  vault.EntityMethod,
		EntityID:    method.ID,
		Details:     map[string]any{"methodName": method.MethodName, "methodType": method.MethodType},
	})
	writeJSON(w, http.StatusCreated, methodResponse(method))
}

// UpdateMethod replaces an access method's attributes and sealed fields.
func (a *API) UpdateMethod(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	clientID := chi.URLParam(r, "clientID")
	methodID := chi.URLParam(r, "methodID")

	var req MethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MethodType == "" || req.MethodName == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "method type and name are required")
		return
	}

	method, err := v.UpdateMethod(r.Context(), methodID, vault.AccessMethodInput{
		MethodType: req.MethodType,
		MethodName: req.MethodName,
		Fields:     req.Fields,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		ClientID:    clientID,
		Action:      vault.AuditMethodUpdated,
		EntityType:  vault.EntityMethod,
		EntityID:    method.ID,
	})
	writeJSON(w, http.StatusOK, methodResponse(method))
}

// DeleteMethod removes an access method.
func (a *API) DeleteMethod(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	clientID := chi.URLParam(r, "clientID")
	methodID := chi.URLParam(r, "methodID")

	if err := v.DeleteMethod(r.Context(), methodID); err != nil {
		mapError(w, err)
		return
	}
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		ClientID:    clientID,
		Action:      vault.AuditMethodDeleted,
		EntityType:  vault.EntityMethod,
		EntityID:    methodID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// RevealMethod decrypts an access method's field values. Requires a live
// resource access grant for the owning client on top of the unlocked
// session; revealing is the one operation the second gate exists for.
func (a *API) RevealMethod(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)
	clientID := chi.URLParam(r, "clientID")
	methodID := chi.URLParam(r, "methodID")

	if err := a.gate.Check(session.SessionID, clientID); err != nil {
		mapError(w, err)
		return
	}

	method, err := v.GetMethod(r.Context(), methodID)
	if err != nil {
		mapError(w, err)
		return
	}
	if method.ClientID != clientID {
		writeError(w, http.StatusNotFound, errNotFound, "not found")
		return
	}

	fields, err := v.RevealFields(r.Context(), methodID)
	if err != nil {
		mapError(w, err)
		return
	}
	a.recordAudit(r.Context(), r, v, vault.AuditEvent{
		WorkspaceID: session.WorkspaceID,
		ClientID:    clientID,
		Action:      vault.AuditMethodRevealed,
		EntityType:  vault.EntityMethod,
		EntityID:    methodID,
		Details:     map[string]any{"methodName": method.MethodName},
	})
	writeJSON(w, http.StatusOK, RevealResponse{Fields: fields})
}

// ListMethodTypes returns the configured method type schemas.
func (a *API) ListMethodTypes(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)

	configs, err := v.MethodTypes(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

// PutMethodType creates or replaces a method type schema.
func (a *API) PutMethodType(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)

	var req MethodTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MethodType == "" {
		writeError(w, http.StatusBadRequest, errMissingFields, "method type is required")
		return
	}

	cfg, err := v.SetMethodType(r.Context(), vault.MethodTypeConfig{
		MethodType: req.MethodType,
		Fields:     req.Fields,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

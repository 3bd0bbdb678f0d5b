package api

import (
	"net/http"
	"strconv"

	"github.com/Thalikbussacro/acesso-clientes/vault"
)

// ListAudit returns audit entries newest first. Encrypted detail envelopes
// are not opened here; the response only flags their presence.
func (a *API) ListAudit(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	v := a.sessions.vaultFor(session.SessionID)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := v.ListAudit(r.Context(), vault.ListAuditOptions{
		ClientID: r.URL.Query().Get("clientId"),
		Action:   r.URL.Query().Get("action"),
		Limit:    limit,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, AuditListResponse{Entries: out})
}

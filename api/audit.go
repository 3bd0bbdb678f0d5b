package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/vault"
)

// auditLogger wraps slog.Logger for structured security logging. It mirrors
// the persisted audit trail but is append-only operational output; the
// durable entries with encrypted details live in the vault package.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{logger: logger.With("component", "audit")}
}

func (al *auditLogger) log(action string, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("action", action),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

func (al *auditLogger) logSession(action string, r *http.Request, sessionID string, extra ...slog.Attr) {
	attrs := append([]slog.Attr{slog.String("session_id", sessionID)}, extra...)
	al.log(action, r, attrs...)
}

func (al *auditLogger) logFailure(action string, r *http.Request, reason string) {
	al.log(action, r, slog.String("reason", reason))
}

// recordAudit writes the durable audit entry, best-effort. Persistence
// failures are logged and never fail the request that triggered them.
func (a *API) recordAudit(ctx context.Context, r *http.Request, v *vault.Vault, event vault.AuditEvent) {
	event.UserAgent = r.UserAgent()
	event.IPAddress = extractClientIP(r)
	if _, err := v.RecordAudit(ctx, event); err != nil {
		a.audit.logger.LogAttrs(ctx, slog.LevelWarn, "audit entry not persisted",
			slog.String("action", event.Action),
			slog.String("error", err.Error()))
	}
}

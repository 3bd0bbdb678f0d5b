// Package api exposes the vault over HTTP: bearer-token sessions, the
// lock/unlock lifecycle, client and access-method CRUD, per-resource
// re-authentication and audit listing.
package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/Thalikbussacro/acesso-clientes/storage"
	"github.com/Thalikbussacro/acesso-clientes/vault"
)

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the REST handlers.
type API struct {
	repo        storage.Repository
	sessions    *sessionRegistry
	tokens      *tokenIssuer
	gate        *vault.AccessGate
	rateLimiter *loginRateLimiter
	audit       *auditLogger
	grantTTL    time.Duration

	sessionStore SessionStore
	idleTimeout  time.Duration
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. If not set, a
// JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSessionStore replaces the default in-memory session store, e.g. with
// a persistent one so tokens survive restarts. Vault keys never persist
// either way.
func WithSessionStore(store SessionStore) Option {
	return func(a *API) {
		a.sessionStore = store
	}
}

// WithIdleTimeout overrides the 30-minute sliding inactivity window.
func WithIdleTimeout(d time.Duration) Option {
	return func(a *API) {
		a.idleTimeout = d
	}
}

// WithGrantTTL overrides the 5-minute resource access grant window.
func WithGrantTTL(d time.Duration) Option {
	return func(a *API) {
		a.grantTTL = d
	}
}

// New creates an API over the given record store. jwtSecret signs session
// bearer tokens and must be stable across restarts for persistent sessions
// to resume.
func New(repo storage.Repository, jwtSecret []byte, opts ...Option) *API {
	a := &API{
		repo:        repo,
		rateLimiter: newLoginRateLimiter(),
		grantTTL:    vault.DefaultGrantTTL,
		idleTimeout: defaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	if a.sessionStore == nil {
		a.sessionStore = NewMemorySessionStore()
	}
	a.sessions = newSessionRegistry(a.sessionStore, repo, a.idleTimeout)
	a.tokens = newTokenIssuer(jwtSecret, tokenTTL)
	a.gate = vault.NewAccessGate(repo, a.grantTTL)
	return a
}

// StartSweeper launches the background reaper for idle sessions, expired
// grants and stale rate-limit records. Stops when ctx is cancelled.
func (a *API) StartSweeper(ctx context.Context) {
	a.sessions.startSweeper(ctx, a.gate, a.audit.logger)
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.rateLimiter.sweep()
			}
		}
	}()
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/docs",
	}, nil))
	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/redoc",
	}, nil))

	r.Get("/status", a.Status)
	r.Post("/auth/setup", a.Setup)
	r.Post("/auth/login", a.Login)

	r.Group(func(r chi.Router) {
		r.Use(a.requireSession)
		r.Get("/auth/session", a.SessionInfo)
		r.Post("/auth/unlock", a.Unlock)
		r.Post("/auth/lock", a.Lock)
		r.Post("/auth/logout", a.Logout)
		r.Post("/auth/change-password", a.ChangePassword)
		r.Post("/auth/clients/{clientID}/validate-access", a.ValidateAccess)

		r.Get("/method-types", a.ListMethodTypes)
		r.Put("/method-types", a.PutMethodType)
		r.Get("/audit", a.ListAudit)

		r.Group(func(r chi.Router) {
			r.Use(a.requireUnlocked)
			r.Get("/clients", a.ListClients)
			r.Post("/clients", a.CreateClient)
			r.Route("/clients/{clientID}", func(r chi.Router) {
				r.Get("/", a.GetClient)
				r.Put("/", a.UpdateClient)
				r.Delete("/", a.DeleteClient)
				r.Get("/methods", a.ListMethods)
				r.Post("/methods", a.CreateMethod)
				r.Put("/methods/{methodID}", a.UpdateMethod)
				r.Delete("/methods/{methodID}", a.DeleteMethod)
				r.Post("/methods/{methodID}/reveal", a.RevealMethod)
			})
		})
	})

	return r
}

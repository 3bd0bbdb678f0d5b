package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/internal/util"
	"github.com/Thalikbussacro/acesso-clientes/storage"
)

// DefaultGrantTTL is the absolute lifetime of a resource access grant.
const DefaultGrantTTL = 5 * time.Minute

// AccessGate is the per-resource re-authentication layer. Holding an
// unlocked session is not enough to reveal a client's secrets; the caller
// must re-present the workspace password for that specific resource, which
// buys a short absolute window. Grants never slide and are scoped to one
// (session, resource) pair.
type AccessGate struct {
	repo storage.Repository
	ttl  time.Duration

	mu     sync.Mutex
	grants map[string]time.Time
}

// NewAccessGate creates a gate over the same storage backend as the vault,
// so password validation always reads the current workspace record. A ttl
// of 0 uses DefaultGrantTTL.
func NewAccessGate(repo storage.Repository, ttl time.Duration) *AccessGate {
	if ttl <= 0 {
		ttl = DefaultGrantTTL
	}
	return &AccessGate{
		repo:   repo,
		ttl:    ttl,
		grants: make(map[string]time.Time),
	}
}

// Validate re-authenticates the caller for one resource. It reloads the
// workspace from storage and runs the full unlock-equivalent check (bcrypt
// then derived-key fingerprint) without touching any session or vault
// state; the derived key is wiped before Validate returns. On success the
// grant window starts now and expires absolutely after the gate's TTL.
func (g *AccessGate) Validate(ctx context.Context, sessionID, resourceID, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" || resourceID == "" {
		return fmt.Errorf("session and resource identifiers are required")
	}

	ws, err := loadWorkspace(g.repo)
	if err != nil {
		return err
	}
	key, err := deriveAndVerify(ws, password)
	if err != nil {
		return err
	}
	util.WipeBytes(key)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants[grantKey(sessionID, resourceID)] = time.Now().Add(g.ttl)
	return nil
}

// Check reports whether a live grant exists for the (session, resource)
// pair. Expired grants are removed and fail with ErrAccessDenied.
func (g *AccessGate) Check(sessionID, resourceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := grantKey(sessionID, resourceID)
	expiry, ok := g.grants[key]
	if !ok {
		return ErrAccessDenied
	}
	if time.Now().After(expiry) {
		delete(g.grants, key)
		return fmt.Errorf("%w: grant expired", ErrAccessDenied)
	}
	return nil
}

// RevokeSession drops every grant held by a session. Called on lock and
// logout so grants never outlive the session that earned them.
func (g *AccessGate) RevokeSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	prefix := sessionID + ":"
	for key := range g.grants {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(g.grants, key)
		}
	}
}

// Sweep removes expired grants. Run periodically alongside the session
// sweeper.
func (g *AccessGate) Sweep() {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, expiry := range g.grants {
		if now.After(expiry) {
			delete(g.grants, key)
		}
	}
}

func grantKey(sessionID, resourceID string) string {
	return sessionID + ":" + resourceID
}

package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/internal/util"
	"github.com/Thalikbussacro/acesso-clientes/storage"
	"github.com/Thalikbussacro/acesso-clientes/vault"
)

const (
	// defaultIdleTimeout is the sliding inactivity window. Every
	// authenticated request restarts it.
	defaultIdleTimeout = 30 * time.Minute
	// sweepInterval is how often the background sweeper reaps idle sessions
	// that lazy deletion has not touched.
	sweepInterval = 10 * time.Minute
	// sessionIDBytes is the entropy of a session identifier.
	sessionIDBytes = 32
)

// sessionRegistry pairs persisted session metadata with the in-memory vault
// handle held for each session. Handles are never persisted: after a restart
// every restored session exists but is locked.
type sessionRegistry struct {
	store       SessionStore
	repo        storage.Repository
	idleTimeout time.Duration

	mu     sync.Mutex
	vaults map[string]*vault.Vault
}

func newSessionRegistry(store SessionStore, repo storage.Repository, idleTimeout time.Duration) *sessionRegistry {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &sessionRegistry{
		store:       store,
		repo:        repo,
		idleTimeout: idleTimeout,
		vaults:      make(map[string]*vault.Vault),
	}
}

// create opens a new session with its own locked vault handle.
func (sr *sessionRegistry) create(workspaceID, fingerprint string) (*Session, error) {
	sessionID, err := util.RandomHex(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("generating session ID: %w", err)
	}
	now := time.Now().UTC()
	session := &Session{
		SessionID:    sessionID,
		WorkspaceID:  workspaceID,
		Fingerprint:  fingerprint,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := sr.store.Put(session); err != nil {
		return nil, err
	}

	sr.mu.Lock()
	sr.vaults[sessionID] = vault.New(sr.repo)
	sr.mu.Unlock()
	return session, nil
}

// get loads a session, enforcing the idle timeout. An idle session is
// deleted lazily right here and reported as expired; a live one has its
// activity timestamp refreshed, which restarts the sliding window.
func (sr *sessionRegistry) get(sessionID string) (*Session, error) {
	session, err := sr.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if time.Since(session.LastActivity) > sr.idleTimeout {
		sr.drop(session.SessionID)
		return nil, errSessionIdle
	}

	// The vault handle is the source of truth for unlocked state; a
	// restored session record may claim unlocked from before a restart.
	session.Unlocked = sr.vaultFor(sessionID).Unlocked()
	session.LastActivity = time.Now().UTC()
	if err := sr.store.Put(session); err != nil {
		return nil, err
	}
	return session, nil
}

// vaultFor returns the session's vault handle, creating a locked one when
// none exists (a session restored from persistent storage).
func (sr *sessionRegistry) vaultFor(sessionID string) *vault.Vault {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	v, ok := sr.vaults[sessionID]
	if !ok {
		v = vault.New(sr.repo)
		sr.vaults[sessionID] = v
	}
	return v
}

// markUnlocked records the unlock on the session metadata.
func (sr *sessionRegistry) markUnlocked(session *Session, unlocked bool) error {
	session.Unlocked = unlocked
	return sr.store.Put(session)
}

// lockAllExcept locks every vault handle other than the given session's.
// Called when one session rotates the master key: the others still hold the
// old key, which no longer decrypts anything, so they fall back to locked
// and recover through a normal re-unlock.
func (sr *sessionRegistry) lockAllExcept(sessionID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	for id, v := range sr.vaults {
		if id != sessionID {
			v.Lock()
		}
	}
}

// drop destroys a session and its vault handle. The handle is locked first
// so the enclave is wiped even if something still references it.
func (sr *sessionRegistry) drop(sessionID string) {
	sr.mu.Lock()
	if v, ok := sr.vaults[sessionID]; ok {
		v.Lock()
		delete(sr.vaults, sessionID)
	}
	sr.mu.Unlock()
	sr.store.Delete(sessionID)
}

// sweep reaps sessions past the idle window and returns how many it
// removed.
func (sr *sessionRegistry) sweep() int {
	sessions, err := sr.store.List()
	if err != nil {
		return 0
	}
	reaped := 0
	for _, session := range sessions {
		if time.Since(session.LastActivity) > sr.idleTimeout {
			sr.drop(session.SessionID)
			reaped++
		}
	}
	return reaped
}

// startSweeper runs sweep on an interval until ctx is cancelled. Lazy
// deletion in get handles the common case; the sweeper reclaims sessions
// nobody asks about again.
func (sr *sessionRegistry) startSweeper(ctx context.Context, gate *vault.AccessGate, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if reaped := sr.sweep(); reaped > 0 && logger != nil {
					logger.LogAttrs(ctx, slog.LevelInfo, "idle sessions reaped",
						slog.Int("count", reaped))
				}
				if gate != nil {
					gate.Sweep()
				}
			}
		}
	}()
}

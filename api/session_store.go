package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/storage"
)

var (
	errSessionMissing = errors.New("session not found")
	errSessionIdle    = errors.New("session expired")
)

// Session is the per-login server-side state referenced by a bearer token.
// It never contains key material; the vault handle lives in the registry's
// in-memory side table so a restart always comes back locked.
type Session struct {
	SessionID    string    `json:"sessionId"`
	WorkspaceID  string    `json:"workspaceId"`
	Fingerprint  string    `json:"fingerprint"`
	Unlocked     bool      `json:"unlocked"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// SessionStore persists session metadata. Implementations hold no vault
// handles and apply no idle logic; the registry owns both.
type SessionStore interface {
	Get(sessionID string) (*Session, error)
	Put(session *Session) error
	Delete(sessionID string) error
	List() ([]*Session, error)
}

// MemorySessionStore is the default mutex-guarded in-memory store.
type MemorySessionStore struct {
	mu   sync.RWMutex
	data map[string]Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{data: make(map[string]Session)}
}

func (s *MemorySessionStore) Get(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.data[sessionID]
	if !ok {
		return nil, errSessionMissing
	}
	cp := session
	return &cp, nil
}

func (s *MemorySessionStore) Put(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[session.SessionID] = *session
	return nil
}

func (s *MemorySessionStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *MemorySessionStore) List() ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*Session, 0, len(s.data))
	for _, session := range s.data {
		cp := session
		sessions = append(sessions, &cp)
	}
	return sessions, nil
}

// PersistentSessionStore keeps session metadata in the record store so
// tokens survive a server restart. Because vault handles are memory-only,
// a restored session is always locked until the user unlocks again.
type PersistentSessionStore struct {
	repo storage.Repository
}

var _ SessionStore = (*PersistentSessionStore)(nil)

// NewPersistentSessionStore creates a store over the given repository.
func NewPersistentSessionStore(repo storage.Repository) *PersistentSessionStore {
	return &PersistentSessionStore{repo: repo}
}

func (s *PersistentSessionStore) Get(sessionID string) (*Session, error) {
	data, err := s.repo.Get(storage.RecordTypeSession, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errSessionMissing
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decoding session record: %w", err)
	}
	return &session, nil
}

func (s *PersistentSessionStore) Put(session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}
	if err := s.repo.Put(storage.RecordTypeSession, session.SessionID, data); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

func (s *PersistentSessionStore) Delete(sessionID string) error {
	if err := s.repo.Delete(storage.RecordTypeSession, sessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *PersistentSessionStore) List() ([]*Session, error) {
	ids, err := s.repo.List(storage.RecordTypeSession)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(id)
		if err != nil {
			if errors.Is(err, errSessionMissing) {
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

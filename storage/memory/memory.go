// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"sync"

	"github.com/Thalikbussacro/acesso-clientes/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and short-lived processes.
type Repository struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string][]byte)}
}

func makeKey(recordType, recordID string) string {
	return recordType + ":" + recordID
}

func (r *Repository) Put(recordType, recordID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putLocked(recordType, recordID, data)
}

func (r *Repository) putLocked(recordType, recordID string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	r.data[makeKey(recordType, recordID)] = cp
	return nil
}

func (r *Repository) Get(recordType, recordID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.data[makeKey(recordType, recordID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (r *Repository) List(recordType string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	prefix := recordType + ":"
	for k := range r.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			ids = append(ids, k[len(prefix):])
		}
	}
	return ids, nil
}

func (r *Repository) Delete(recordType, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(recordType, recordID)
}

func (r *Repository) deleteLocked(recordType, recordID string) error {
	k := makeKey(recordType, recordID)
	if _, ok := r.data[k]; !ok {
		return storage.ErrNotFound
	}
	delete(r.data, k)
	return nil
}

// Batch executes fn within a transaction. On error, all writes are rolled back.
func (r *Repository) Batch(fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string][]byte, len(r.data))
	for k, v := range r.data {
		cp := make([]byte, len(v))
		copy(cp, v)
		snapshot[k] = cp
	}

	tx := &memoryBatchTx{repo: r}
	if err := fn(tx); err != nil {
		r.data = snapshot
		return err
	}
	return nil
}

type memoryBatchTx struct {
	repo *Repository
}

func (tx *memoryBatchTx) Put(recordType, recordID string, data []byte) error {
	return tx.repo.putLocked(recordType, recordID, data)
}

func (tx *memoryBatchTx) Delete(recordType, recordID string) error {
	return tx.repo.deleteLocked(recordType, recordID)
}

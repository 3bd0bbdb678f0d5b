// Package storage provides the record storage abstraction for the vault.
//
// Records are opaque JSON blobs keyed by (record type, record ID). Sensitive
// attributes inside a record are already sealed into encrypted field
// envelopes by the vault package before they reach a Repository, so storage
// implementations never see plaintext secrets.
package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Record types persisted by the vault.
const (
	RecordTypeWorkspace  = "WORKSPACE"
	RecordTypeClient     = "CLIENT"
	RecordTypeMethod     = "METHOD"
	RecordTypeMethodType = "METHOD_TYPE"
	RecordTypeAudit      = "AUDIT"
	RecordTypeSession    = "SESSION"
)

// Repository defines the interface for record storage.
type Repository interface {
	Put(recordType string, recordID string, data []byte) error
	Get(recordType string, recordID string) ([]byte, error)
	List(recordType string) ([]string, error)
	Delete(recordType string, recordID string) error
	// Batch executes fn atomically: either every write in fn is applied or
	// none are. Used for multi-record invariants such as the password-change
	// re-encryption pass.
	Batch(fn func(tx BatchTx) error) error
}

// BatchTx provides Put and Delete within an atomic transaction.
type BatchTx interface {
	Put(recordType string, recordID string, data []byte) error
	Delete(recordType string, recordID string) error
}

// Package vault implements the encryption-gated client-records vault: a
// single password-protected workspace whose sensitive fields are sealed
// under a derived master key that only exists in memory while the vault is
// unlocked.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/internal/util"
	"github.com/Thalikbussacro/acesso-clientes/storage"
)

// Vault is the stateful handle over a workspace. It is either locked (no
// key) or unlocked (master key sealed in an enclave). All field
// encryption and decryption flows through WithKey, so a locked vault is an
// error rather than a nil-pointer hazard.
type Vault struct {
	repo storage.Repository

	mu  sync.RWMutex
	key *MasterKey
}

// New creates a locked Vault over the given storage backend.
func New(repo storage.Repository) *Vault {
	return &Vault{repo: repo}
}

// createMu serializes workspace creation across all Vault handles in the
// process. Without it two concurrent creates could both pass the singleton
// check and the loser's record would be silently overwritten.
var createMu sync.Mutex

// Workspace loads the singleton workspace record. ErrWorkspaceNotFound when
// setup has not run yet.
func (v *Vault) Workspace(ctx context.Context) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return loadWorkspace(v.repo)
}

// CreateWorkspace initializes the workspace. Exactly one may exist; a second
// call fails with ErrWorkspaceExists. The password must pass strength
// validation. The vault stays locked afterwards; callers unlock explicitly.
func (v *Vault) CreateWorkspace(ctx context.Context, name, password string) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || password == "" {
		return nil, fmt.Errorf("workspace name and password are required")
	}
	if result := ValidatePasswordStrength(password); !result.IsValid {
		return nil, &WeakPasswordError{Result: result}
	}

	createMu.Lock()
	defer createMu.Unlock()
	if _, err := loadWorkspace(v.repo); err == nil {
		return nil, ErrWorkspaceExists
	} else if !errors.Is(err, ErrWorkspaceNotFound) {
		return nil, err
	}

	ws, err := newWorkspace(name, password)
	if err != nil {
		return nil, err
	}
	data, err := marshalWorkspace(ws)
	if err != nil {
		return nil, err
	}
	if err := v.repo.Put(storage.RecordTypeWorkspace, workspaceRecordID, data); err != nil {
		return nil, fmt.Errorf("persisting workspace: %w", err)
	}
	return ws, nil
}

// VerifyPassword checks the login password against the workspace's bcrypt
// hash without deriving the master key. This is the cheap gate used at
// login; Unlock runs the full check.
func (v *Vault) VerifyPassword(ctx context.Context, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ws, err := loadWorkspace(v.repo)
	if err != nil {
		return err
	}
	if !util.CheckPassword(password, ws.PasswordHash) {
		return ErrInvalidPassword
	}
	return nil
}

// Unlock verifies the password and installs the master key. Verification is
// two checks, both required: the bcrypt login hash, then the fingerprint of
// the derived key against the stored key hash. A failed unlock mutates
// nothing; an already-unlocked vault re-unlocks idempotently, replacing the
// held key with the freshly derived one.
func (v *Vault) Unlock(ctx context.Context, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ws, err := loadWorkspace(v.repo)
	if err != nil {
		return err
	}

	key, err := deriveAndVerify(ws, password)
	if err != nil {
		return err
	}

	// newMasterKey hands the raw key to memguard, which wipes the source
	// slice as part of sealing.
	mk, err := newMasterKey(key)
	if err != nil {
		util.WipeBytes(key)
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key != nil {
		v.key.Destroy()
	}
	v.key = mk
	return nil
}

// Lock destroys the master key. Idempotent: locking a locked vault is a
// no-op. After Lock every field operation fails with ErrVaultLocked until
// the next successful Unlock.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key != nil {
		v.key.Destroy()
		v.key = nil
	}
}

// Unlocked reports whether a master key is currently held.
func (v *Vault) Unlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key != nil
}

// WithKey runs fn with the raw master key. Returns ErrVaultLocked when no
// key is held. fn must not retain the slice; it is wiped when fn returns.
func (v *Vault) WithKey(fn func(key []byte) error) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.key == nil {
		return ErrVaultLocked
	}
	return v.key.Use(fn)
}

// ChangePassword rotates the workspace password and master key. The current
// password must pass the full unlock check; the new one must pass strength
// validation. Every stored encrypted field is re-encrypted under the new key
// and persisted together with the updated workspace record in one atomic
// batch, so a crash mid-change leaves either the old world or the new world,
// never a mix. On success the vault holds the new key.
func (v *Vault) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result := ValidatePasswordStrength(newPassword); !result.IsValid {
		return &WeakPasswordError{Result: result}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	ws, err := loadWorkspace(v.repo)
	if err != nil {
		return err
	}
	oldKey, err := deriveAndVerify(ws, currentPassword)
	if err != nil {
		return err
	}
	defer util.WipeBytes(oldKey)

	salt, err := util.RandomBytes(util.SaltSize)
	if err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	newKey, err := util.DeriveKey(newPassword, salt)
	if err != nil {
		return fmt.Errorf("deriving master key: %w", err)
	}
	passwordHash, err := util.HashPassword(newPassword)
	if err != nil {
		util.WipeBytes(newKey)
		return err
	}

	ws.PasswordHash = passwordHash
	ws.Salt = util.HexEncode(salt)
	ws.KeyHash = util.KeyFingerprint(newKey)
	ws.UpdatedAt = time.Now().UTC()
	wsData, err := marshalWorkspace(ws)
	if err != nil {
		util.WipeBytes(newKey)
		return err
	}

	resealed, err := v.resealAllRecords(ctx, oldKey, newKey)
	if err != nil {
		util.WipeBytes(newKey)
		return err
	}

	err = v.repo.Batch(func(tx storage.BatchTx) error {
		if err := tx.Put(storage.RecordTypeWorkspace, workspaceRecordID, wsData); err != nil {
			return err
		}
		for _, rec := range resealed {
			if err := tx.Put(rec.recordType, rec.recordID, rec.data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		util.WipeBytes(newKey)
		return fmt.Errorf("persisting password change: %w", err)
	}

	mk, err := newMasterKey(newKey)
	if err != nil {
		util.WipeBytes(newKey)
		return err
	}
	if v.key != nil {
		v.key.Destroy()
	}
	v.key = mk
	return nil
}

type resealedRecord struct {
	recordType string
	recordID   string
	data       []byte
}

// resealAllRecords walks every record type carrying encrypted fields and
// re-encrypts those fields from oldKey to newKey. Plaintext attributes,
// including the search index, are untouched.
func (v *Vault) resealAllRecords(ctx context.Context, oldKey, newKey []byte) ([]resealedRecord, error) {
	var out []resealedRecord

	clientIDs, err := v.repo.List(storage.RecordTypeClient)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	for _, id := range clientIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := v.repo.Get(storage.RecordTypeClient, id)
		if err != nil {
			return nil, err
		}
		var c Client
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decoding client %s: %w", id, err)
		}
		if c.Notes, err = resealField(c.Notes, oldKey, newKey); err != nil {
			return nil, fmt.Errorf("re-encrypting client %s notes: %w", id, err)
		}
		if c.Images, err = resealField(c.Images, oldKey, newKey); err != nil {
			return nil, fmt.Errorf("re-encrypting client %s images: %w", id, err)
		}
		resealedData, err := json.Marshal(&c)
		if err != nil {
			return nil, err
		}
		out = append(out, resealedRecord{storage.RecordTypeClient, id, resealedData})
	}

	methodIDs, err := v.repo.List(storage.RecordTypeMethod)
	if err != nil {
		return nil, fmt.Errorf("listing access methods: %w", err)
	}
	for _, id := range methodIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := v.repo.Get(storage.RecordTypeMethod, id)
		if err != nil {
			return nil, err
		}
		var m AccessMethod
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding access method %s: %w", id, err)
		}
		if m.Fields, err = resealField(m.Fields, oldKey, newKey); err != nil {
			return nil, fmt.Errorf("re-encrypting access method %s: %w", id, err)
		}
		resealedData, err := json.Marshal(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, resealedRecord{storage.RecordTypeMethod, id, resealedData})
	}

	auditIDs, err := v.repo.List(storage.RecordTypeAudit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	for _, id := range auditIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := v.repo.Get(storage.RecordTypeAudit, id)
		if err != nil {
			return nil, err
		}
		var e AuditEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding audit entry %s: %w", id, err)
		}
		if e.Details, err = resealField(e.Details, oldKey, newKey); err != nil {
			return nil, fmt.Errorf("re-encrypting audit entry %s: %w", id, err)
		}
		resealedData, err := json.Marshal(&e)
		if err != nil {
			return nil, err
		}
		out = append(out, resealedRecord{storage.RecordTypeAudit, id, resealedData})
	}

	return out, nil
}

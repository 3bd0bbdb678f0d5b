package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/internal/util"
	"github.com/Thalikbussacro/acesso-clientes/internal/uuid"
	"github.com/Thalikbussacro/acesso-clientes/storage"
)

// workspaceRecordID is the fixed record ID for the singleton workspace.
// Exactly one workspace exists per deployment.
const workspaceRecordID = "current"

// Workspace is the persisted root of the vault: the bcrypt login hash, the
// key-derivation salt and the master-key fingerprint. The master key itself
// is never part of this record.
type Workspace struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	Salt         string    `json:"salt"`
	KeyHash      string    `json:"keyHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// loadWorkspace reads the singleton workspace record from storage.
func loadWorkspace(repo storage.Repository) (*Workspace, error) {
	data, err := repo.Get(storage.RecordTypeWorkspace, workspaceRecordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	var ws Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("decoding workspace record: %w", err)
	}
	return &ws, nil
}

func marshalWorkspace(ws *Workspace) ([]byte, error) {
	data, err := json.Marshal(ws)
	if err != nil {
		return nil, fmt.Errorf("encoding workspace record: %w", err)
	}
	return data, nil
}

// newWorkspace builds a workspace record from a name and password: fresh
// random salt, bcrypt login hash and the fingerprint of the derived key.
func newWorkspace(name, password string) (*Workspace, error) {
	salt, err := util.RandomBytes(util.SaltSize)
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	passwordHash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	key, err := util.DeriveKey(password, salt)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}
	keyHash := util.KeyFingerprint(key)
	util.WipeBytes(key)

	now := time.Now().UTC()
	return &Workspace{
		ID:           uuid.New(),
		Name:         name,
		PasswordHash: passwordHash,
		Salt:         util.HexEncode(salt),
		KeyHash:      keyHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// deriveAndVerify runs the full unlock check against a workspace record:
// bcrypt verification first, then key derivation and a constant-time
// comparison of the key fingerprint against the stored key hash. On success
// it returns the raw derived key; the caller owns wiping it.
func deriveAndVerify(ws *Workspace, password string) ([]byte, error) {
	if !util.CheckPassword(password, ws.PasswordHash) {
		return nil, ErrInvalidPassword
	}

	salt, err := util.HexDecode(ws.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding workspace salt: %w", err)
	}

	key, err := util.DeriveKey(password, salt)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}
	if !util.VerifyKeyFingerprint(key, ws.KeyHash) {
		util.WipeBytes(key)
		return nil, ErrInvalidPassword
	}
	return key, nil
}

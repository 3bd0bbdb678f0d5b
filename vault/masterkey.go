package vault

import (
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/Thalikbussacro/acesso-clientes/internal/util"
)

// MasterKey holds the workspace's symmetric key in a memguard Enclave so the
// raw key stays encrypted in memory except inside a Use callback. The key is
// never persisted and never logged; Destroy wipes it.
type MasterKey struct {
	enclave     *memguard.Enclave
	fingerprint string
	destroyed   bool
}

// newMasterKey seals raw key material into an enclave. memguard wipes the
// source slice as part of sealing.
func newMasterKey(raw []byte) (*MasterKey, error) {
	if len(raw) != util.AESKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", util.AESKeySize, len(raw))
	}
	fingerprint := util.KeyFingerprint(raw)
	return &MasterKey{
		enclave:     memguard.NewEnclave(raw),
		fingerprint: fingerprint,
	}, nil
}

// Fingerprint returns the SHA-256 fingerprint of the key, safe to compare
// against a workspace's stored key hash.
func (k *MasterKey) Fingerprint() string {
	if k == nil || k.destroyed {
		return ""
	}
	return k.fingerprint
}

// Use opens the enclave and invokes fn with the raw key. The decrypted
// buffer is destroyed as soon as fn returns; fn must not retain the slice.
func (k *MasterKey) Use(fn func(key []byte) error) error {
	if k == nil || k.destroyed {
		return ErrVaultLocked
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening master key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Destroy drops the enclave and marks the key unusable. The enclave's
// backing pages are wiped by memguard when the last opened buffer is
// destroyed; after Destroy the key cannot be opened again.
func (k *MasterKey) Destroy() {
	if k == nil || k.destroyed {
		return
	}
	k.enclave = nil
	k.fingerprint = ""
	k.destroyed = true
}

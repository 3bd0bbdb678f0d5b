package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Thalikbussacro/acesso-clientes/internal/util"
)

// EncryptedField is the envelope every sensitive attribute is stored and
// transmitted in: base64 ciphertext plus hex IV and authentication tag.
// The tag binds ciphertext integrity to the master key; decryption fails
// closed if it does not verify.
type EncryptedField struct {
	Data    string `json:"data"`
	IV      string `json:"iv"`
	AuthTag string `json:"authTag"`
}

// SealField encrypts plaintext into an EncryptedField under the vault's
// master key. Empty plaintext yields a nil field; "no value" is stored
// instead of an encrypted empty string.
func (v *Vault) SealField(plaintext []byte) (*EncryptedField, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	var field *EncryptedField
	err := v.WithKey(func(key []byte) error {
		var err error
		field, err = sealFieldWithKey(plaintext, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return field, nil
}

// OpenField decrypts an EncryptedField. A locked vault fails with
// ErrVaultLocked before the envelope is even parsed; a bad tag, malformed
// encoding or wrong key surfaces as ErrCorruptField.
func (v *Vault) OpenField(field *EncryptedField) ([]byte, error) {
	if field == nil {
		return nil, nil
	}
	var plaintext []byte
	err := v.WithKey(func(key []byte) error {
		var err error
		plaintext, err = openFieldWithKey(field, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// SealJSON marshals a value and seals it as one envelope.
func (v *Vault) SealJSON(value any) (*EncryptedField, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshaling field value: %w", err)
	}
	defer util.WipeBytes(data)
	return v.SealField(data)
}

// OpenJSON opens an envelope and unmarshals the plaintext into out.
// Malformed plaintext JSON is reported as ErrCorruptField, the same as a
// failed tag: either way the stored value cannot be trusted.
func (v *Vault) OpenJSON(field *EncryptedField, out any) error {
	plaintext, err := v.OpenField(field)
	if err != nil {
		return err
	}
	if plaintext == nil {
		return nil
	}
	defer util.WipeBytes(plaintext)
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: invalid field payload", ErrCorruptField)
	}
	return nil
}

func sealFieldWithKey(plaintext, key []byte) (*EncryptedField, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	cipherText, iv, tag, err := util.EncryptAESGCM(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("sealing field: %w", err)
	}
	return &EncryptedField{
		Data:    base64.StdEncoding.EncodeToString(cipherText),
		IV:      util.HexEncode(iv),
		AuthTag: util.HexEncode(tag),
	}, nil
}

func openFieldWithKey(field *EncryptedField, key []byte) ([]byte, error) {
	if field == nil {
		return nil, nil
	}
	cipherText, err := base64.StdEncoding.DecodeString(field.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrCorruptField)
	}
	iv, err := util.HexDecode(field.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid IV encoding", ErrCorruptField)
	}
	tag, err := util.HexDecode(field.AuthTag)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid auth tag encoding", ErrCorruptField)
	}
	plaintext, err := util.DecryptAESGCM(cipherText, iv, tag, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptField, err)
	}
	return plaintext, nil
}

// resealField decrypts an envelope under oldKey and seals the plaintext
// again under newKey. Used by the password-change re-encryption pass.
func resealField(field *EncryptedField, oldKey, newKey []byte) (*EncryptedField, error) {
	if field == nil {
		return nil, nil
	}
	plaintext, err := openFieldWithKey(field, oldKey)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(plaintext)
	return sealFieldWithKey(plaintext, newKey)
}

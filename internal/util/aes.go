package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// AESKeySize is the required key length for AES-256-GCM.
	AESKeySize = 32
	// IVSize is the initialization vector length. 16 bytes for
	// compatibility with envelopes produced by the original backend.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// EncryptAESGCM encrypts plaintext with AES-256-GCM under a fresh random IV.
// The ciphertext, IV and authentication tag are returned separately so the
// caller can build the envelope wire format.
func EncryptAESGCM(plainText, rawKey []byte) (cipherText, iv, tag []byte, err error) {
	if len(rawKey) != AESKeySize {
		return nil, nil, nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating GCM: %w", err)
	}

	iv = make([]byte, IVSize)
	if _, err = io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, nil, fmt.Errorf("generating IV: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plainText, nil)

	// gcm.Seal appends the tag to the ciphertext.
	cipherText = sealed[:len(sealed)-TagSize]
	tag = sealed[len(sealed)-TagSize:]
	return cipherText, iv, tag, nil
}

// DecryptAESGCM decrypts a ciphertext/IV/tag triple. It fails closed: any
// length mismatch or tag verification failure returns an error and no
// plaintext is ever produced.
func DecryptAESGCM(cipherText, iv, tag, rawKey []byte) ([]byte, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("invalid IV size: got %d, want %d", len(iv), IVSize)
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("invalid auth tag size: got %d, want %d", len(tag), TagSize)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	sealed := make([]byte, 0, len(cipherText)+len(tag))
	sealed = append(sealed, cipherText...)
	sealed = append(sealed, tag...)

	plainText, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting ciphertext: %w", err)
	}

	return plainText, nil
}

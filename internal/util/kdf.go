package util

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KDFIterations is the fixed PBKDF2 iteration count. Changing it would
	// silently break key recovery for existing workspaces.
	KDFIterations = 100_000
	// SaltSize is the key-derivation salt length.
	SaltSize = 32
)

// DeriveKey stretches a password into a 32-byte symmetric key using
// PBKDF2-SHA256. Deterministic: the same password and salt always yield the
// same key.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("key derivation salt must not be empty")
	}
	normalized := Normalize(password)
	return pbkdf2.Key([]byte(normalized), salt, KDFIterations, AESKeySize, sha256.New), nil
}

// KeyFingerprint returns the SHA-256 fingerprint of a derived key, hex
// encoded. Stored instead of the key itself so a derived key can be verified
// without the system ever persisting key material.
func KeyFingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return HexEncode(sum[:])
}

// VerifyKeyFingerprint compares a key against a stored fingerprint in
// constant time.
func VerifyKeyFingerprint(key []byte, fingerprint string) bool {
	computed := KeyFingerprint(key)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(fingerprint)) == 1
}

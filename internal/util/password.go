package util

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is deliberately above the library default; login verification
// is rare enough that the extra work factor costs nothing in practice.
const bcryptCost = 12

// HashPassword produces a one-way bcrypt hash of the password for login
// verification. Never used for key derivation.
func HashPassword(password string) (string, error) {
	normalized := []byte(Normalize(password))
	defer WipeBytes(normalized)
	hash, err := bcrypt.GenerateFromPassword(normalized, bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored bcrypt hash.
func CheckPassword(password, hash string) bool {
	normalized := []byte(Normalize(password))
	defer WipeBytes(normalized)
	return bcrypt.CompareHashAndPassword([]byte(hash), normalized) == nil
}

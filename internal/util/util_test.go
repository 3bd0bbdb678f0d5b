package util

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptAESGCM(t *testing.T) {
	key, err := RandomBytes(AESKeySize)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	plaintext := []byte("confidential client notes")

	cipherText, iv, tag, err := EncryptAESGCM(plaintext, key)
	if err != nil {
		t.Fatalf("EncryptAESGCM failed: %v", err)
	}
	if len(iv) != IVSize {
		t.Errorf("expected IV of %d bytes, got %d", IVSize, len(iv))
	}
	if len(tag) != TagSize {
		t.Errorf("expected tag of %d bytes, got %d", TagSize, len(tag))
	}

	decrypted, err := DecryptAESGCM(cipherText, iv, tag, key)
	if err != nil {
		t.Fatalf("DecryptAESGCM failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptAESGCM_UniqueIV(t *testing.T) {
	key, _ := RandomBytes(AESKeySize)
	_, iv1, _, err := EncryptAESGCM([]byte("x"), key)
	if err != nil {
		t.Fatalf("EncryptAESGCM failed: %v", err)
	}
	_, iv2, _, err := EncryptAESGCM([]byte("x"), key)
	if err != nil {
		t.Fatalf("EncryptAESGCM failed: %v", err)
	}
	if bytes.Equal(iv1, iv2) {
		t.Error("IVs must be random per encryption call")
	}
}

func TestDecryptAESGCM_TamperRejection(t *testing.T) {
	key, _ := RandomBytes(AESKeySize)
	cipherText, iv, tag, err := EncryptAESGCM([]byte("secret payload"), key)
	if err != nil {
		t.Fatalf("EncryptAESGCM failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c, i, g []byte) ([]byte, []byte, []byte)
	}{
		{"FlipCiphertextBit", func(c, i, g []byte) ([]byte, []byte, []byte) {
			c = CopyBytes(c)
			c[0] ^= 0x01
			return c, i, g
		}},
		{"FlipIVBit", func(c, i, g []byte) ([]byte, []byte, []byte) {
			i = CopyBytes(i)
			i[0] ^= 0x01
			return c, i, g
		}},
		{"FlipTagBit", func(c, i, g []byte) ([]byte, []byte, []byte) {
			g = CopyBytes(g)
			g[len(g)-1] ^= 0x80
			return c, i, g
		}},
		{"TruncatedIV", func(c, i, g []byte) ([]byte, []byte, []byte) {
			return c, i[:IVSize-1], g
		}},
		{"TruncatedTag", func(c, i, g []byte) ([]byte, []byte, []byte) {
			return c, i, g[:TagSize-1]
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, i, g := tt.mutate(cipherText, iv, tag)
			if _, err := DecryptAESGCM(c, i, g, key); err == nil {
				t.Error("expected decryption to fail on tampered input")
			}
		})
	}
}

func TestDecryptAESGCM_WrongKey(t *testing.T) {
	key1, _ := RandomBytes(AESKeySize)
	key2, _ := RandomBytes(AESKeySize)
	cipherText, iv, tag, err := EncryptAESGCM([]byte("payload"), key1)
	if err != nil {
		t.Fatalf("EncryptAESGCM failed: %v", err)
	}
	if _, err := DecryptAESGCM(cipherText, iv, tag, key2); err == nil {
		t.Error("expected decryption under the wrong key to fail")
	}
}

func TestEncryptAESGCM_KeySizeValidation(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		key := make([]byte, n)
		if _, _, _, err := EncryptAESGCM([]byte("x"), key); err == nil {
			t.Errorf("expected error for %d-byte key", n)
		}
		if _, err := DecryptAESGCM([]byte("x"), make([]byte, IVSize), make([]byte, TagSize), key); err == nil {
			t.Errorf("expected error for %d-byte key", n)
		}
	}
}

func TestDeriveKey(t *testing.T) {
	salt, _ := RandomBytes(SaltSize)

	key1, err := DeriveKey("correct horse battery staple", salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	key2, err := DeriveKey("correct horse battery staple", salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if !bytes.Equal(key1, key2) {
		t.Error("DeriveKey must be deterministic for the same password and salt")
	}
	if len(key1) != AESKeySize {
		t.Errorf("expected %d-byte key, got %d", AESKeySize, len(key1))
	}

	otherSalt, _ := RandomBytes(SaltSize)
	key3, _ := DeriveKey("correct horse battery staple", otherSalt)
	if bytes.Equal(key1, key3) {
		t.Error("different salts must yield different keys")
	}

	key4, _ := DeriveKey("other password", salt)
	if bytes.Equal(key1, key4) {
		t.Error("different passwords must yield different keys")
	}

	if _, err := DeriveKey("pw", nil); err == nil {
		t.Error("expected error for empty salt")
	}
}

func TestKeyFingerprint(t *testing.T) {
	key, _ := RandomBytes(AESKeySize)
	fp := KeyFingerprint(key)

	if !VerifyKeyFingerprint(key, fp) {
		t.Error("fingerprint should verify against its own key")
	}

	other, _ := RandomBytes(AESKeySize)
	if VerifyKeyFingerprint(other, fp) {
		t.Error("fingerprint should not verify against a different key")
	}
	if VerifyKeyFingerprint(key, fp[:len(fp)-2]) {
		t.Error("truncated fingerprint should not verify")
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pass12")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !CheckPassword("Str0ng!Pass12", hash) {
		t.Error("password should verify against its own hash")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password should not verify")
	}

	// Hashes are salted: the same password never produces the same hash twice.
	hash2, err := HashPassword("Str0ng!Pass12")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == hash2 {
		t.Error("bcrypt hashes should be salted")
	}
}

func TestNormalize(t *testing.T) {
	// U+00E9 vs e + combining acute must normalize identically.
	composed := "café"
	decomposed := "café"
	if Normalize(composed) != Normalize(decomposed) {
		t.Error("NFKD normalization should unify equivalent forms")
	}
}

func TestHexRoundTrip(t *testing.T) {
	b, _ := RandomBytes(24)
	decoded, err := HexDecode(HexEncode(b))
	if err != nil {
		t.Fatalf("HexDecode failed: %v", err)
	}
	if !bytes.Equal(b, decoded) {
		t.Error("hex round trip mismatch")
	}

	if _, err := HexDecode("not-hex!"); err == nil {
		t.Error("expected error decoding invalid hex")
	}
}

package service

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Blake2bKeyHasher implements ports.KeyHasher with an unkeyed BLAKE2b-256
// digest. API key secrets are high-entropy random strings, so the digest can
// be deterministic and indexed for lookup.
type Blake2bKeyHasher struct{}

// NewBlake2bKeyHasher creates a new key hasher.
func NewBlake2bKeyHasher() *Blake2bKeyHasher {
	return &Blake2bKeyHasher{}
}

// Hash returns the lowercase hex digest of secret.
func (h *Blake2bKeyHasher) Hash(secret string) string {
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

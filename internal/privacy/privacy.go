// Package privacy hashes visitor identifiers before they reach logs or storage.
package privacy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces stable, salted, truncated hashes of client IPs.
type Hasher struct {
	salt string
}

// NewHasher uses salt when provided, otherwise a random per-process salt.
// A random salt keeps hashes consistent only for the lifetime of the process.
func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		generated, err := RandomToken(32)
		if err != nil {
			return nil, err
		}
		salt = generated
	}
	return &Hasher{salt: salt}, nil
}

// HashIP returns the first 16 hex characters of sha256(ip + salt).
func (h *Hasher) HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip + h.salt))
	return hex.EncodeToString(sum[:])[:16]
}

// RandomToken returns n random bytes hex-encoded.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Package sha256 provides the SHA-256 digests used for article identifiers.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher produces hex encoded SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// HashString returns the hex digest of s.
func (h *Hasher) HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ShortDigest hashes the trimmed fields joined by newlines and keeps the
// first n hex characters. n outside 1..64 keeps the whole digest.
func (h *Hasher) ShortDigest(n int, fields ...string) string {
	trimmed := make([]string, len(fields))
	for i, f := range fields {
		trimmed[i] = strings.TrimSpace(f)
	}
	digest := h.HashString(strings.Join(trimmed, "\n"))
	if n <= 0 || n > len(digest) {
		return digest
	}
	return digest[:n]
}

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// ImageHashLen is the length of a fingerprint returned by HashImage.
const ImageHashLen = sha256.Size * 2

// HashImage fingerprints image bytes as lowercase hex SHA-256.
// Callers treat empty input as "no image" and never hash it.
func HashImage(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

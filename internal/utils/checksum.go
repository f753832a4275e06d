package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex returns the hex-encoded SHA-256 digest of the payload.
func Sha256Hex(payload []byte) string {
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}

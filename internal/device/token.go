package device

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of a device token (128 bits).
const tokenBytes = 16

// GenerateToken returns a fresh random device token, hex-encoded.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating device token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

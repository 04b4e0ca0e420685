package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of state and nonce values (256 bits).
const tokenBytes = 32

// NewState generates a fresh anti-forgery state value: 64 lowercase hex
// characters from a CSPRNG.
func NewState() (string, error) {
	return randomHex()
}

// NewNonce generates a fresh replay-protection nonce, independent of state.
func NewNonce() (string, error) {
	return randomHex()
}

func randomHex() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

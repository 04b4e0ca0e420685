package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// UsernameCandidate derives a local username from provider claims.
// Precedence: preferred_username local-part, then email local-part, then
// a subject-derived fallback. The result is sanitized for local storage.
func UsernameCandidate(preferredUsername, email, subject string) string {
	if lp := localPart(preferredUsername); lp != "" {
		return SanitizeUsername(lp)
	}
	if lp := localPart(email); lp != "" {
		return SanitizeUsername(lp)
	}
	suffix := subject
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return SanitizeUsername("entra_" + suffix)
}

// SanitizeUsername lowercases the input and replaces every character
// outside [a-z0-9_-] with an underscore.
func SanitizeUsername(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// localPart returns the part of s before the first '@', or s itself when
// it contains no '@'. Empty input yields empty output.
func localPart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return s[:i]
	}
	return s
}

// randomPasswordHash produces a bcrypt hash of a random secret that is
// immediately discarded. Provisioned accounts get an unusable password so
// federated users cannot sign in with local credentials.
func randomPasswordHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(buf)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash generated password: %w", err)
	}
	return string(hash), nil
}

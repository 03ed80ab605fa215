// Package cryptox contains the hashing and random-secret primitives used by
// the refresh token flow.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// RefreshSecretSize is the number of random bytes in a refresh secret (512 bits).
const RefreshSecretSize = 64

// Digest returns the uppercase hex SHA-256 of raw. Stores keep and match only
// this value, never the raw secret.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// GenerateRandByteArray returns size bytes from crypto/rand.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateRefreshSecret produces a new raw refresh secret together with its
// digest. The raw value is URL-safe base64 without padding so it can travel in
// JSON bodies, cookies and query strings unchanged.
//
// The raw value must be handed to the client once and then dropped.
func GenerateRefreshSecret() (raw string, digest string, err error) {
	b, err := GenerateRandByteArray(RefreshSecretSize)
	if err != nil {
		return "", "", err
	}
	defer WipeByteArray(b)

	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, Digest(raw), nil
}

// WipeByteArray overwrites b with zeros.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

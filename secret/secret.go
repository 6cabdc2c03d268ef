// Package secret generates the opaque, 64-character bearer strings used
// throughout the provider: session IDs, authorization codes, access
// tokens, registration tokens, and client secrets. Every caller gets the
// same uniform alphanumeric source; collisions are treated as impossible
// within the lifetime of any issued credential.
package secret

import (
	"crypto/rand"
	"fmt"
)

// Length is the fixed width of a generated secret.
const Length = 64

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// New returns a fresh cryptographically random 64-character string.
func New() (string, error) {
	// Bytes at or above the largest multiple of len(alphabet) below 256
	// are rejected so every character is equally likely.
	limit := 256 - 256%len(alphabet)
	raw := make([]byte, Length)
	out := make([]byte, 0, Length)
	for len(out) < Length {
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("secret: generate: %w", err)
		}
		for _, b := range raw {
			if int(b) < limit && len(out) < Length {
				out = append(out, alphabet[int(b)%len(alphabet)])
			}
		}
	}
	return string(out), nil
}

package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// hashClientSecret computes the at-rest form of a client secret: an
// HMAC-SHA256 under the server's pepper, not a plaintext column (spec §9
// "Client-secret storage"). HMAC rather than Argon2 because the secret
// is itself drawn from a uniform random 64-character alphabet, not a
// user-chosen password — there is no offline-guessing surface to slow
// down, only a same-DB-snapshot leak to blunt.
func (s *Server) hashClientSecret(secret string) string {
	h := hmac.New(sha256.New, s.clientSecretPepper)
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// verifyClientSecret recomputes the HMAC and compares in constant time,
// replacing the source's `WHERE client_secret = ?` plaintext query (spec
// §7 "constant-time comparisons").
func (s *Server) verifyClientSecret(secret, storedHash string) bool {
	got := s.hashClientSecret(secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}

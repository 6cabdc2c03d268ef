// Package password hashes and verifies end-user passwords with Argon2id.
// The encoded hash is self-describing, carrying its own cost parameters and
// salt the way the teacher's bcrypt-based Password type carries its cost
// byte inside the hash itself (see golang.org/x/crypto/bcrypt) — callers
// never need to know which parameters produced a stored hash to verify it.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength = 16
	keyLength  = 32

	defaultTime    = 1
	defaultMemory  = 64 * 1024 // KiB
	defaultThreads = 4
)

// ErrMismatch is returned by Verify when the plaintext does not match the
// stored hash.
var ErrMismatch = errors.New("password: hash mismatch")

// Hash produces a self-describing Argon2id hash for plaintext.
func Hash(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: generate salt: %w", err)
	}
	return hashWithSalt(plaintext, salt, defaultTime, defaultMemory, defaultThreads), nil
}

func hashWithSalt(plaintext string, salt []byte, time, memory uint32, threads uint8) string {
	key := argon2.IDKey([]byte(plaintext), salt, time, memory, threads, keyLength)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, time, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// Verify reports whether plaintext matches encoded, a hash previously
// produced by Hash. Comparison of the derived key is constant-time.
func Verify(plaintext, encoded string) error {
	version, memory, time, threads, salt, key, err := decode(encoded)
	if err != nil {
		return err
	}
	if version != argon2.Version {
		return fmt.Errorf("password: unsupported argon2 version %d", version)
	}

	candidate := argon2.IDKey([]byte(plaintext), salt, time, memory, threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(candidate, key) != 1 {
		return ErrMismatch
	}
	return nil
}

func decode(encoded string) (version int, memory, time uint32, threads uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, 0, nil, nil, errors.New("password: malformed hash")
	}
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("password: malformed version: %w", err)
	}
	var p uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &p); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("password: malformed params: %w", err)
	}
	threads = uint8(p)
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("password: malformed salt: %w", err)
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("password: malformed key: %w", err)
	}
	return version, memory, time, threads, salt, key, nil
}

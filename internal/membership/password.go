// internal/membership/password.go
package membership

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16

	legacyDefaultIterations = 600000
)

// HashPassword generates a salted Argon2id hash encoded as
// argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword compares a password with an encoded hash in constant time.
// Werkzeug pbkdf2 hashes from the previous deployment are also accepted.
func VerifyPassword(password, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "argon2id$"):
		return verifyArgon2(password, encoded)
	case strings.HasPrefix(encoded, "pbkdf2:"):
		return verifyPBKDF2(password, encoded)
	default:
		return false
	}
}

// NeedsRehash reports whether encoded was produced by an older scheme.
func NeedsRehash(encoded string) bool {
	return !strings.HasPrefix(encoded, "argon2id$")
}

func verifyArgon2(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// verifyPBKDF2 checks pbkdf2:<hash>[:<iterations>]$<salt>$<hex digest>.
func verifyPBKDF2(password, encoded string) bool {
	method, rest, ok := strings.Cut(encoded, "$")
	if !ok {
		return false
	}
	salt, digest, ok := strings.Cut(rest, "$")
	if !ok {
		return false
	}

	params := strings.Split(method, ":")
	if len(params) < 2 || len(params) > 3 {
		return false
	}

	var h func() hash.Hash
	switch params[1] {
	case "sha256":
		h = sha256.New
	case "sha512":
		h = sha512.New
	default:
		return false
	}

	iterations := legacyDefaultIterations
	if len(params) == 3 {
		n, err := strconv.Atoi(params[2])
		if err != nil || n <= 0 {
			return false
		}
		iterations = n
	}

	want, err := hex.DecodeString(digest)
	if err != nil || len(want) == 0 {
		return false
	}

	got := pbkdf2.Key([]byte(password), []byte(salt), iterations, h().Size(), h)
	return subtle.ConstantTimeCompare(got, want) == 1
}
